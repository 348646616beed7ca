package main

import (
	"testing"
)

func TestGetEnvReturnsValueWhenSet(t *testing.T) {
	const key = "TEST_GETENV_SET"
	const expected = "custom-value"

	t.Setenv(key, expected)

	result := getEnv(key, "fallback")
	if result != expected {
		t.Errorf("expected %q, got %q", expected, result)
	}
}

func TestGetEnvReturnsFallbackWhenUnset(t *testing.T) {
	const key = "TEST_GETENV_UNSET"
	const fallback = "default-value"

	result := getEnv(key, fallback)
	if result != fallback {
		t.Errorf("expected fallback %q, got %q", fallback, result)
	}
}

func TestGetEnvReturnsFallbackWhenEmpty(t *testing.T) {
	const key = "TEST_GETENV_EMPTY"
	const fallback = "default-value"

	t.Setenv(key, "")

	result := getEnv(key, fallback)
	if result != fallback {
		t.Errorf("expected fallback %q for empty env var, got %q", fallback, result)
	}
}

func TestGetEnvInt64ParsesValue(t *testing.T) {
	const key = "TEST_GETENV_INT64"

	t.Setenv(key, "1048576")

	result := getEnvInt64(key, 42)
	if result != 1048576 {
		t.Errorf("expected 1048576, got %d", result)
	}
}

func TestGetEnvInt64ReturnsFallbackOnGarbage(t *testing.T) {
	const key = "TEST_GETENV_INT64_GARBAGE"

	t.Setenv(key, "not-a-number")

	result := getEnvInt64(key, 42)
	if result != 42 {
		t.Errorf("expected fallback 42, got %d", result)
	}
}
