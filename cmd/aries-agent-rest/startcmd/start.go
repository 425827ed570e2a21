/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/component/storage/leveldb"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hyperledger/aries-didcomm-agent/pkg/common/metrics"
	"github.com/hyperledger/aries-didcomm-agent/pkg/controller"
	agentrest "github.com/hyperledger/aries-didcomm-agent/pkg/controller/rest/agent"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport"
	arieshttp "github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport/http"
	"github.com/hyperledger/aries-didcomm-agent/pkg/didcomm/transport/ws"
	"github.com/hyperledger/aries-didcomm-agent/pkg/framework/agent"
	connectionstore "github.com/hyperledger/aries-didcomm-agent/pkg/store/connection"
)

const (
	// api host flag.
	agentHostFlagName      = "api-host"
	agentHostEnvKey        = "ARIESD_API_HOST"
	agentHostFlagShorthand = "a"
	agentHostFlagUsage     = "Host Name:Port." +
		" Alternatively, this can be set with the following environment variable: " + agentHostEnvKey

	// api token flag.
	agentTokenFlagName      = "api-token"
	agentTokenEnvKey        = "ARIESD_API_TOKEN" // nolint:gosec
	agentTokenFlagShorthand = "t"
	agentTokenFlagUsage     = "Check for bearer token in the authorization header (optional)." +
		" Alternatively, this can be set with the following environment variable: " + agentTokenEnvKey

	// config file flag.
	configFileFlagName      = "config-file"
	configFileEnvKey        = "ARIESD_CONFIG_FILE"
	configFileFlagShorthand = "f"
	configFileFlagUsage     = "YAML file holding defaults for the other flags, keyed by flag name." +
		" Flags and environment variables take precedence over it." +
		" Alternatively, this can be set with the following environment variable: " + configFileEnvKey

	databaseTypeFlagName      = "database-type"
	databaseTypeEnvKey        = "ARIESD_DATABASE_TYPE"
	databaseTypeFlagShorthand = "q"
	databaseTypeFlagUsage     = "The type of database to use for keys, connections and routes. " +
		"Supported options: mem, leveldb. Defaults to mem if not set." +
		" Alternatively, this can be set with the following environment variable: " + databaseTypeEnvKey

	databaseURLFlagName      = "database-url"
	databaseURLEnvKey        = "ARIESD_DATABASE_URL"
	databaseURLFlagShorthand = "v"
	databaseURLFlagUsage     = "The location of the database. For leveldb this is the directory path." +
		" Not needed if using memstore." +
		" Alternatively, this can be set with the following environment variable: " + databaseURLEnvKey

	databaseTimeoutFlagName  = "database-timeout"
	databaseTimeoutFlagUsage = "Total time in seconds to wait until the db is available before giving up." +
		" Default: " + databaseTimeoutDefault + " seconds." +
		" Alternatively, this can be set with the following environment variable: " + databaseTimeoutEnvKey
	databaseTimeoutEnvKey  = "ARIESD_DATABASE_TIMEOUT"
	databaseTimeoutDefault = "30"

	// agent label flag.
	agentLabelFlagName      = "agent-label"
	agentLabelEnvKey        = "ARIESD_AGENT_LABEL"
	agentLabelFlagShorthand = "l"
	agentLabelFlagUsage     = "Label sent to peers in invitations and connection requests. Defaults to blank if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentLabelEnvKey

	// log level.
	agentLogLevelFlagName  = "log-level"
	agentLogLevelEnvKey    = "ARIESD_LOG_LEVEL"
	agentLogLevelFlagUsage = "Log level." +
		" Possible values [INFO] [DEBUG] [ERROR] [WARNING] [CRITICAL] . Defaults to INFO if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentLogLevelEnvKey

	// outbound transport flag.
	agentOutboundTransportFlagName      = "outbound-transport"
	agentOutboundTransportEnvKey        = "ARIESD_OUTBOUND_TRANSPORT"
	agentOutboundTransportFlagShorthand = "o"
	agentOutboundTransportFlagUsage     = "Outbound transport type." +
		" This flag can be repeated, allowing for multiple transports." +
		" Possible values [http] [ws] [inbox]. Defaults to http if not set." +
		" [inbox] queues messages for peers without an endpoint until they poll for them." +
		" Alternatively, this can be set with the following environment variable: " + agentOutboundTransportEnvKey

	// inbox mode flag.
	agentInboxModeFlagName  = "inbox-mode"
	agentInboxModeEnvKey    = "ARIESD_INBOX_MODE"
	agentInboxModeFlagUsage = "How connection inboxes are read." +
		" Possible values [keep-all] [take-one]. Defaults to keep-all if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentInboxModeEnvKey

	// wallet seed flag.
	agentWalletSeedFlagName  = "wallet-seed"
	agentWalletSeedEnvKey    = "ARIESD_WALLET_SEED" // nolint:gosec
	agentWalletSeedFlagUsage = "32 character seed of the public DID of the agent. Mediators publish its verkey" +
		" as routing key. A random DID is created if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentWalletSeedEnvKey

	// mediator invitation flag.
	agentMediatorInvitationFlagName  = "mediator-invitation"
	agentMediatorInvitationEnvKey    = "ARIESD_MEDIATOR_INVITATION"
	agentMediatorInvitationFlagUsage = "Invitation URL of a mediator to route every new connection through." +
		" Alternatively, this can be set with the following environment variable: " + agentMediatorInvitationEnvKey

	// mediator verkey flag.
	agentMediatorVerKeyFlagName  = "mediator-verkey"
	agentMediatorVerKeyEnvKey    = "ARIESD_MEDIATOR_VERKEY"
	agentMediatorVerKeyFlagUsage = "Routing key of the mediator. Defaults to the verkey of the mediator connection." +
		" Alternatively, this can be set with the following environment variable: " + agentMediatorVerKeyEnvKey

	agentTLSCertFileFlagName      = "tls-cert-file"
	agentTLSCertFileEnvKey        = "TLS_CERT_FILE"
	agentTLSCertFileFlagShorthand = "c"
	agentTLSCertFileFlagUsage     = "tls certificate file." +
		" Alternatively, this can be set with the following environment variable: " + agentTLSCertFileEnvKey

	agentTLSKeyFileFlagName      = "tls-key-file"
	agentTLSKeyFileEnvKey        = "TLS_KEY_FILE"
	agentTLSKeyFileFlagShorthand = "k"
	agentTLSKeyFileFlagUsage     = "tls key file." +
		" Alternatively, this can be set with the following environment variable: " + agentTLSKeyFileEnvKey

	// inbound host url flag.
	agentInboundHostFlagName      = "inbound-host"
	agentInboundHostEnvKey        = "ARIESD_INBOUND_HOST"
	agentInboundHostFlagShorthand = "i"
	agentInboundHostFlagUsage     = "Inbound Host Name:Port. This is used internally to start the inbound server." +
		" Values should be in `scheme@url` format, with scheme http or ws." +
		" Without it the agent has no endpoint and needs a mediator." +
		" Alternatively, this can be set with the following environment variable: " + agentInboundHostEnvKey

	// inbound host external url flag.
	agentInboundHostExternalFlagName      = "inbound-host-external"
	agentInboundHostExternalEnvKey        = "ARIESD_INBOUND_HOST_EXTERNAL"
	agentInboundHostExternalFlagShorthand = "e"
	agentInboundHostExternalFlagUsage     = "Inbound Host External Name:Port and values should be in `scheme@url` format" +
		" This is the URL for the inbound server as seen externally." +
		" If not provided, then the internal inbound host will be used here." +
		" Alternatively, this can be set with the following environment variable: " + agentInboundHostExternalEnvKey

	// inbound rate limit flag.
	agentInboundRateLimitFlagName  = "inbound-rate-limit"
	agentInboundRateLimitEnvKey    = "ARIESD_INBOUND_RATE_LIMIT"
	agentInboundRateLimitFlagUsage = "Envelopes per second accepted from one remote host on the http inbound." +
		" Defaults to 0, no limit." +
		" Alternatively, this can be set with the following environment variable: " + agentInboundRateLimitEnvKey

	httpProtocol      = "http"
	websocketProtocol = "ws"
	inboxProtocol     = "inbox"

	databaseTypeMemOption     = "mem"
	databaseTypeLevelDBOption = "leveldb"

	metricsPath     = "/metrics"
	mediatorTimeout = time.Minute
	walletSeedSize  = 32
)

var (
	errMissingHost = errors.New("host not provided")
	logger         = log.New("aries-framework/agent-rest")
)

type agentParameters struct {
	server                                   server
	host, label, token                       string
	tlsCertFile, tlsKeyFile                  string
	outboundTransports                       []string
	inboundHostInternal, inboundHostExternal string
	inboundRateLimit                         float64
	inboxMode, walletSeed                    string
	mediatorInvitation, mediatorVerKey       string
	dbParam                                  *dbParam
}

type dbParam struct {
	dbType  string
	url     string
	timeout uint64
}

// nolint:gochecknoglobals
var supportedStorageProviders = map[string]func(url string) (storage.Provider, error){
	databaseTypeMemOption: func(_ string) (storage.Provider, error) { // nolint:unparam
		return mem.NewProvider(), nil
	},
	databaseTypeLevelDBOption: func(path string) (storage.Provider, error) { // nolint:unparam
		return leveldb.NewProvider(path), nil
	},
}

type server interface {
	ListenAndServe(host string, router http.Handler, certFile, keyFile string) error
}

// HTTPServer represents an actual server implementation.
type HTTPServer struct{}

// ListenAndServe starts the server using the standard Go HTTP server implementation.
func (s *HTTPServer) ListenAndServe(host string, router http.Handler, certFile, keyFile string) error {
	srv := &http.Server{Addr: host, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	if certFile != "" && keyFile != "" {
		return srv.ListenAndServeTLS(certFile, keyFile)
	}

	return srv.ListenAndServe()
}

// Cmd returns the Cobra start command.
func Cmd(server server) (*cobra.Command, error) {
	startCmd := createStartCMD(server)

	createFlags(startCmd)

	return startCmd, nil
}

func createStartCMD(server server) *cobra.Command { //nolint: funlen, gocyclo
	return &cobra.Command{
		Use:   "start",
		Short: "Start an agent",
		Long:  `Start a DIDComm agent with its controller REST API`,
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile, err := getUserSetVar(cmd, nil, configFileFlagName, configFileEnvKey, true)
			if err != nil {
				return err
			}

			conf, err := loadConfigFile(configFile)
			if err != nil {
				return err
			}

			// log level
			logLevel, err := getUserSetVar(cmd, conf, agentLogLevelFlagName, agentLogLevelEnvKey, true)
			if err != nil {
				return err
			}

			err = setLogLevel(logLevel)
			if err != nil {
				return err
			}

			host, err := getUserSetVar(cmd, conf, agentHostFlagName, agentHostEnvKey, false)
			if err != nil {
				return err
			}

			token, err := getUserSetVar(cmd, conf, agentTokenFlagName, agentTokenEnvKey, true)
			if err != nil {
				return err
			}

			inboundHost, err := getUserSetVar(cmd, conf, agentInboundHostFlagName, agentInboundHostEnvKey, true)
			if err != nil {
				return err
			}

			inboundHostExternal, err := getUserSetVar(cmd, conf, agentInboundHostExternalFlagName,
				agentInboundHostExternalEnvKey, true)
			if err != nil {
				return err
			}

			inboundRateLimit, err := getRateLimit(cmd, conf)
			if err != nil {
				return err
			}

			dbParam, err := getDBParam(cmd, conf)
			if err != nil {
				return err
			}

			label, err := getUserSetVar(cmd, conf, agentLabelFlagName, agentLabelEnvKey, true)
			if err != nil {
				return err
			}

			outboundTransports, err := getUserSetVars(cmd, conf, agentOutboundTransportFlagName,
				agentOutboundTransportEnvKey, true)
			if err != nil {
				return err
			}

			inboxMode, err := getUserSetVar(cmd, conf, agentInboxModeFlagName, agentInboxModeEnvKey, true)
			if err != nil {
				return err
			}

			walletSeed, err := getUserSetVar(cmd, conf, agentWalletSeedFlagName, agentWalletSeedEnvKey, true)
			if err != nil {
				return err
			}

			mediatorInvitation, err := getUserSetVar(cmd, conf, agentMediatorInvitationFlagName,
				agentMediatorInvitationEnvKey, true)
			if err != nil {
				return err
			}

			mediatorVerKey, err := getUserSetVar(cmd, conf, agentMediatorVerKeyFlagName,
				agentMediatorVerKeyEnvKey, true)
			if err != nil {
				return err
			}

			tlsCertFile, err := getUserSetVar(cmd, conf, agentTLSCertFileFlagName, agentTLSCertFileEnvKey, true)
			if err != nil {
				return err
			}

			tlsKeyFile, err := getUserSetVar(cmd, conf, agentTLSKeyFileFlagName, agentTLSKeyFileEnvKey, true)
			if err != nil {
				return err
			}

			parameters := &agentParameters{
				server:              server,
				host:                host,
				token:               token,
				label:               label,
				inboundHostInternal: inboundHost,
				inboundHostExternal: inboundHostExternal,
				inboundRateLimit:    inboundRateLimit,
				dbParam:             dbParam,
				outboundTransports:  outboundTransports,
				inboxMode:           inboxMode,
				walletSeed:          walletSeed,
				mediatorInvitation:  mediatorInvitation,
				mediatorVerKey:      mediatorVerKey,
				tlsCertFile:         tlsCertFile,
				tlsKeyFile:          tlsKeyFile,
			}

			return startAgent(parameters)
		},
	}
}

func getDBParam(cmd *cobra.Command, conf map[string]interface{}) (*dbParam, error) {
	dbParam := &dbParam{}

	var err error

	dbParam.dbType, err = getUserSetVar(cmd, conf, databaseTypeFlagName, databaseTypeEnvKey, true)
	if err != nil {
		return nil, err
	}

	if dbParam.dbType == "" {
		dbParam.dbType = databaseTypeMemOption
	}

	dbParam.url, err = getUserSetVar(cmd, conf, databaseURLFlagName, databaseURLEnvKey, true)
	if err != nil {
		return nil, err
	}

	dbTimeout, err := getUserSetVar(cmd, conf, databaseTimeoutFlagName, databaseTimeoutEnvKey, true)
	if err != nil {
		return nil, err
	}

	if dbTimeout == "" || dbTimeout == "0" {
		dbTimeout = databaseTimeoutDefault
	}

	t, err := strconv.Atoi(dbTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db timeout %s: %w", dbTimeout, err)
	}

	dbParam.timeout = uint64(t)

	return dbParam, nil
}

func getRateLimit(cmd *cobra.Command, conf map[string]interface{}) (float64, error) {
	v, err := getUserSetVar(cmd, conf, agentInboundRateLimitFlagName, agentInboundRateLimitEnvKey, true)
	if err != nil {
		return 0, err
	}

	if v == "" {
		return 0, nil
	}

	limit, err := strconv.ParseFloat(v, 64)
	if err != nil || limit < 0 {
		return 0, fmt.Errorf("invalid inbound rate limit '%s'", v)
	}

	return limit, nil
}

func createFlags(startCmd *cobra.Command) {
	// agent host flag
	startCmd.Flags().StringP(agentHostFlagName, agentHostFlagShorthand, "", agentHostFlagUsage)

	// agent token flag
	startCmd.Flags().StringP(agentTokenFlagName, agentTokenFlagShorthand, "", agentTokenFlagUsage)

	// config file flag
	startCmd.Flags().StringP(configFileFlagName, configFileFlagShorthand, "", configFileFlagUsage)

	// inbound host flag
	startCmd.Flags().StringP(agentInboundHostFlagName, agentInboundHostFlagShorthand, "", agentInboundHostFlagUsage)

	// inbound external host flag
	startCmd.Flags().StringP(agentInboundHostExternalFlagName, agentInboundHostExternalFlagShorthand, "",
		agentInboundHostExternalFlagUsage)

	// inbound rate limit flag
	startCmd.Flags().StringP(agentInboundRateLimitFlagName, "", "", agentInboundRateLimitFlagUsage)

	// db type
	startCmd.Flags().StringP(databaseTypeFlagName, databaseTypeFlagShorthand, "", databaseTypeFlagUsage)

	// db url
	startCmd.Flags().StringP(databaseURLFlagName, databaseURLFlagShorthand, "", databaseURLFlagUsage)

	// db timeout
	startCmd.Flags().StringP(databaseTimeoutFlagName, "", "", databaseTimeoutFlagUsage)

	// log level
	startCmd.Flags().StringP(agentLogLevelFlagName, "", "", agentLogLevelFlagUsage)

	// agent label flag
	startCmd.Flags().StringP(agentLabelFlagName, agentLabelFlagShorthand, "", agentLabelFlagUsage)

	// agent outbound transport flag
	startCmd.Flags().StringSliceP(agentOutboundTransportFlagName, agentOutboundTransportFlagShorthand, []string{},
		agentOutboundTransportFlagUsage)

	// inbox mode flag
	startCmd.Flags().StringP(agentInboxModeFlagName, "", "", agentInboxModeFlagUsage)

	// wallet seed flag
	startCmd.Flags().StringP(agentWalletSeedFlagName, "", "", agentWalletSeedFlagUsage)

	// mediator flags
	startCmd.Flags().StringP(agentMediatorInvitationFlagName, "", "", agentMediatorInvitationFlagUsage)
	startCmd.Flags().StringP(agentMediatorVerKeyFlagName, "", "", agentMediatorVerKeyFlagUsage)

	// tls cert file
	startCmd.Flags().StringP(agentTLSCertFileFlagName,
		agentTLSCertFileFlagShorthand, "", agentTLSCertFileFlagUsage)

	// tls key file
	startCmd.Flags().StringP(agentTLSKeyFileFlagName,
		agentTLSKeyFileFlagShorthand, "", agentTLSKeyFileFlagUsage)
}

// loadConfigFile reads the YAML config file at path, keyed by flag name. An empty path yields no config.
func loadConfigFile(path string) (map[string]interface{}, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	conf := make(map[string]interface{})

	if err := yaml.Unmarshal(data, &conf); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return conf, nil
}

func getUserSetVar(cmd *cobra.Command, conf map[string]interface{}, flagName, envKey string,
	isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)
	if isSet {
		return value, nil
	}

	if v, ok := conf[flagName]; ok {
		if _, isList := v.([]interface{}); isList {
			return "", fmt.Errorf("config file: %s must be a single value", flagName)
		}

		return fmt.Sprint(v), nil
	}

	if isOptional {
		return "", nil
	}

	return "", errors.New("Neither " + flagName + " (command line flag) nor " + envKey +
		" (environment variable) have been set.")
}

func getUserSetVars(cmd *cobra.Command, conf map[string]interface{}, flagName, envKey string,
	isOptional bool) ([]string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetStringSlice(flagName)
		if err != nil {
			return nil, fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)
	if isSet {
		return strings.Split(value, ","), nil
	}

	if v, ok := conf[flagName]; ok {
		return configValues(v), nil
	}

	if isOptional {
		return nil, nil
	}

	return nil, fmt.Errorf(" %s not set. "+
		"It must be set via either command line or environment variable", flagName)
}

func configValues(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return strings.Split(fmt.Sprint(v), ",")
	}

	values := make([]string, 0, len(list))

	for _, item := range list {
		values = append(values, fmt.Sprint(item))
	}

	return values
}

func getOutboundTransportOpts(outboundTransports []string) ([]agent.Option, error) {
	var opts []agent.Option

	var transports []transport.OutboundTransport

	for _, outboundTransport := range outboundTransports {
		switch outboundTransport {
		case httpProtocol:
			transports = append(transports, arieshttp.NewOutbound(arieshttp.WithOutboundHTTPClient(&http.Client{})))
		case websocketProtocol:
			transports = append(transports, ws.NewOutbound())
		case inboxProtocol:
			opts = append(opts, agent.WithInboxDelivery())
		default:
			return nil, fmt.Errorf("outbound transport [%s] not supported", outboundTransport)
		}
	}

	if len(transports) > 0 {
		opts = append(opts, agent.WithOutboundTransports(transports...))
	}

	return opts, nil
}

func getInboundTransportOpts(parameters *agentParameters, poll http.HandlerFunc) ([]agent.Option, error) {
	if parameters.inboundHostInternal == "" {
		return nil, nil
	}

	internalScheme, internalHost, err := splitSchemeHost(parameters.inboundHostInternal)
	if err != nil {
		return nil, fmt.Errorf("inbound internal host : %w", err)
	}

	var externalHost string

	if parameters.inboundHostExternal != "" {
		externalScheme, host, e := splitSchemeHost(parameters.inboundHostExternal)
		if e != nil {
			return nil, fmt.Errorf("inbound external host : %w", e)
		}

		if externalScheme != internalScheme {
			return nil, fmt.Errorf("inbound external host scheme [%s] does not match [%s]", externalScheme,
				internalScheme)
		}

		externalHost = host
	}

	var inbound transport.InboundTransport

	switch internalScheme {
	case httpProtocol:
		inbound, err = arieshttp.NewInbound(internalHost, externalHost, parameters.tlsCertFile, parameters.tlsKeyFile,
			arieshttp.WithRateLimit(parameters.inboundRateLimit, rateBurst(parameters.inboundRateLimit)),
			// The poll route skips the API token. Its handler only serves polls signed by the polled verkey.
			arieshttp.WithRoutes(arieshttp.Route{Method: http.MethodGet, Path: agentrest.PollPath, Handler: poll}))
	case websocketProtocol:
		inbound, err = ws.NewInbound(internalHost, externalHost)
	default:
		return nil, fmt.Errorf("inbound transport [%s] not supported", internalScheme)
	}

	if err != nil {
		return nil, fmt.Errorf("%s inbound transport initialization failed: %w", internalScheme, err)
	}

	return []agent.Option{agent.WithInboundTransport(inbound)}, nil
}

func rateBurst(limit float64) int {
	return int(math.Max(1, math.Ceil(limit)))
}

func splitSchemeHost(schemeHost string) (string, string, error) {
	const validSliceLen = 2

	schemeHostSlice := strings.SplitN(schemeHost, "@", validSliceLen)
	if len(schemeHostSlice) != validSliceLen {
		return "", "", fmt.Errorf("invalid inbound host option: Use scheme@url to pass the option")
	}

	return schemeHostSlice[0], schemeHostSlice[1], nil
}

func getAgentOpts(parameters *agentParameters) ([]agent.Option, error) {
	opts := []agent.Option{agent.WithLabel(parameters.label)}

	if parameters.inboxMode != "" {
		opts = append(opts, agent.WithInboxMode(connectionstore.InboxMode(parameters.inboxMode)))
	}

	if parameters.walletSeed != "" {
		if len(parameters.walletSeed) != walletSeedSize {
			return nil, fmt.Errorf("wallet seed must be %d characters", walletSeedSize)
		}

		opts = append(opts, agent.WithWalletSeed([]byte(parameters.walletSeed)))
	}

	outboundOpts, err := getOutboundTransportOpts(parameters.outboundTransports)
	if err != nil {
		return nil, err
	}

	return append(opts, outboundOpts...), nil
}

func setLogLevel(logLevel string) error {
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("failed to parse log level '%s' : %w", logLevel, err)
		}

		log.SetLevel("", level)

		logger.Infof("logger level set to %s", logLevel)
	}

	return nil
}

func validateAuthorizationBearerToken(w http.ResponseWriter, r *http.Request, token string) bool {
	actHdr := r.Header.Get("Authorization")
	expHdr := "Bearer " + token

	if subtle.ConstantTimeCompare([]byte(actHdr), []byte(expHdr)) != 1 {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Unauthorised.\n")) // nolint:gosec,errcheck

		return false
	}

	return true
}

func authorizationMiddleware(token string) mux.MiddlewareFunc {
	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validateAuthorizationBearerToken(w, r, token) {
				next.ServeHTTP(w, r)
			}
		})
	}

	return middleware
}

// pollHandler serves the inbox poll route of the inbound server, which starts before the agent it
// reads from exists.
type pollHandler struct {
	handler atomic.Value
}

func (p *pollHandler) set(h http.HandlerFunc) {
	p.handler.Store(h)
}

func (p *pollHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h, ok := p.handler.Load().(http.HandlerFunc)
	if !ok {
		http.Error(w, "agent is starting", http.StatusServiceUnavailable)

		return
	}

	h(w, r)
}

func startAgent(parameters *agentParameters) error {
	if parameters.host == "" {
		return errMissingHost
	}

	poll := &pollHandler{}

	a, err := createAgent(parameters, poll.ServeHTTP)
	if err != nil {
		return err
	}

	pollRoute, err := controller.GetPollHandler(a)
	if err != nil {
		return fmt.Errorf("failed to start aries agent rest on port [%s], failed to get poll handler : %w",
			parameters.host, err)
	}

	poll.set(pollRoute.Handle())

	if parameters.mediatorInvitation != "" {
		if err := connectMediator(a, parameters); err != nil {
			return err
		}
	}

	// get all HTTP REST API handlers available for controller API
	handlers, err := controller.GetRESTHandlers(a)
	if err != nil {
		return fmt.Errorf("failed to start aries agent rest on port [%s], failed to get rest service api :  %w",
			parameters.host, err)
	}

	router := mux.NewRouter()

	if parameters.token != "" {
		router.Use(authorizationMiddleware(parameters.token))
	}

	for _, handler := range handlers {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	router.Handle(metricsPath, metrics.Handler()).Methods(http.MethodGet)

	logger.Infof("Starting aries agent rest on host [%s]", parameters.host)
	// start server on given port and serve using given handlers
	handler := cors.New(
		cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodHead},
			AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With", "Authorization"},
		},
	).Handler(router)

	err = parameters.server.ListenAndServe(parameters.host, handler, parameters.tlsCertFile, parameters.tlsKeyFile)
	if err != nil {
		return fmt.Errorf("failed to start aries agent rest on port [%s], cause:  %w", parameters.host, err)
	}

	return nil
}

func connectMediator(a *agent.Agent, parameters *agentParameters) error {
	ctx, cancel := context.WithTimeout(context.Background(), mediatorTimeout)
	defer cancel()

	connKey, err := a.EstablishInbound(ctx, parameters.mediatorVerKey, parameters.mediatorInvitation)
	if err != nil {
		return fmt.Errorf("failed to start aries agent rest on port [%s], failed to connect to mediator : %w",
			parameters.host, err)
	}

	logger.Infof("routing through mediator connection %s", connKey)

	return nil
}

func createAgent(parameters *agentParameters, poll http.HandlerFunc) (*agent.Agent, error) {
	storePro, err := createStoreProviders(parameters)
	if err != nil {
		return nil, err
	}

	opts := []agent.Option{agent.WithStorageProvider(storePro)}

	inboundOpts, err := getInboundTransportOpts(parameters, poll)
	if err != nil {
		return nil, fmt.Errorf("failed to start aries agent rest on port [%s], failed to inbound tranpsort opt : %w",
			parameters.host, err)
	}

	opts = append(opts, inboundOpts...)

	agentOpts, err := getAgentOpts(parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to start aries agent rest on port [%s], failed to agent opts : %w",
			parameters.host, err)
	}

	opts = append(opts, agentOpts...)

	a, err := agent.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to start aries agent rest on port [%s], failed to initialize agent :  %w",
			parameters.host, err)
	}

	return a, nil
}

func createStoreProviders(parameters *agentParameters) (storage.Provider, error) {
	provider, supported := supportedStorageProviders[parameters.dbParam.dbType]
	if !supported {
		return nil, fmt.Errorf("key database type not set to a valid type." +
			" run start --help to see the available options")
	}

	if parameters.dbParam.dbType == databaseTypeLevelDBOption && parameters.dbParam.url == "" {
		return nil, errors.New("leveldb needs the database path in " + databaseURLFlagName)
	}

	var store storage.Provider

	err := backoff.RetryNotify(
		func() error {
			var openErr error
			store, openErr = provider(parameters.dbParam.url)
			return openErr
		},
		backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), parameters.dbParam.timeout),
		func(retryErr error, t time.Duration) {
			logger.Warnf(
				"failed to connect to storage, will sleep for %s before trying again : %s\n",
				t, retryErr)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage at %s : %w", parameters.dbParam.url, err)
	}

	return store, nil
}
