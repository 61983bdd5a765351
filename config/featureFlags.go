package config

import (
	"os"
	"strconv"
	"strings"
)

// RosterAutoLock locks a roster immediately after it completes, making it
// immutable without a separate admin action.
//
// Set via env:
// - ROSTER_AUTO_LOCK=true
func RosterAutoLock() bool {
	return boolFromEnv("ROSTER_AUTO_LOCK")
}

// WhitelistEnforcement requires promotion candidates to be on the scholarship
// configuration's whitelist before they can take a vacated slot.
//
// Set via env:
// - WHITELIST_ENFORCEMENT=true
func WhitelistEnforcement() bool {
	return boolFromEnv("WHITELIST_ENFORCEMENT")
}

// VerificationEnabledDefault is used when a roster trigger does not say
// whether student-status verification should run.
//
// Set via env:
// - VERIFICATION_ENABLED_DEFAULT=true (default true)
func VerificationEnabledDefault() bool {
	v := strings.TrimSpace(os.Getenv("VERIFICATION_ENABLED_DEFAULT"))
	if v == "" {
		return true
	}
	return boolFromEnv("VERIFICATION_ENABLED_DEFAULT")
}

// VerifyTimeoutSeconds bounds one student-verification HTTP call.
func VerifyTimeoutSeconds() int {
	return positiveIntFromEnv("VERIFY_TIMEOUT_SECONDS", 10)
}

// VerifyMaxRetries is the retry budget per student on transport errors.
func VerifyMaxRetries() int {
	return positiveIntFromEnv("VERIFY_MAX_RETRIES", 2)
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func positiveIntFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
