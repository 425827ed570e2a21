/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package logutil

import (
	"fmt"
	"strings"
)

// Logger is the subset of component/log used here.
type Logger interface {
	Debugf(msg string, args ...interface{})
	Infof(msg string, args ...interface{})
	Warnf(msg string, args ...interface{})
	Errorf(msg string, args ...interface{})
}

// LogError is a utility function to log error messages.
func LogError(logger Logger, component, action, errMsg string, data ...string) {
	logger.Errorf("component=[%s] action=[%s] %s errMsg=[%s]", component, action, join(data), errMsg)
}

// LogWarn is a utility function to log warnings.
func LogWarn(logger Logger, component, action, msg string, data ...string) {
	logger.Warnf("component=[%s] action=[%s] %s msg=[%s]", component, action, join(data), msg)
}

// LogDebug is a utility function to log debug messages.
func LogDebug(logger Logger, component, action, msg string, data ...string) {
	logger.Debugf("component=[%s] action=[%s] %s msg=[%s]", component, action, join(data), msg)
}

// LogInfo is a utility function to log info messages.
func LogInfo(logger Logger, component, action, msg string, data ...string) {
	logger.Infof("component=[%s] action=[%s] %s msg=[%s]", component, action, join(data), msg)
}

// CreateKeyValueString creates a concatenated string.
func CreateKeyValueString(key, val string) string {
	return fmt.Sprintf("%s=[%s]", key, val)
}

func join(data []string) string {
	return strings.Join(data, " ")
}
