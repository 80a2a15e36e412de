// config.go - Haupt-Konfigurationsfunktionen fuer den Graph-Builder
//
// Dieses Modul enthaelt:
// - LogLevel: Gibt Log-Level zurueck (ALBERT_DEBUG)
// - Seed: Seed fuer die Gewichtsinitialisierung (ALBERT_SEED)
// - StrictGroups: Ungleichmaessige Gruppenteilung ablehnen (ALBERT_STRICT_GROUPS)
// - ExportType: Tensor-Typ fuer den GGUF-Export (ALBERT_EXPORT_TYPE)
// - Backend: Name des Graph-Backends (ALBERT_BACKEND)
//
// Weitere Konfigurationen sind ausgelagert:
// - config_utils.go: Utility-Funktionen und AsMap/Values
package envconfig

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// LogLevel gibt das Log-Level zurueck
// Konfigurierbar via ALBERT_DEBUG
// Werte: 0/false = INFO (Default), 1/true = DEBUG, 2 = TRACE
func LogLevel() slog.Level {
	level := slog.LevelInfo
	if s := Var("ALBERT_DEBUG"); s != "" {
		if b, _ := strconv.ParseBool(s); b {
			level = slog.LevelDebug
		} else if i, _ := strconv.ParseInt(s, 10, 64); i != 0 {
			level = slog.Level(i * -4)
		}
	}

	return level
}

// ExportType gibt den Tensor-Typ fuer den GGUF-Export zurueck
// Konfigurierbar via ALBERT_EXPORT_TYPE
// Werte: f32 (Default), f16, bf16
func ExportType() string {
	if s := strings.ToLower(Var("ALBERT_EXPORT_TYPE")); s != "" {
		return s
	}
	return "f32"
}

// Backend gibt den Namen des Graph-Backends zurueck
// Konfigurierbar via ALBERT_BACKEND
// Default: ref
func Backend() string {
	if s := Var("ALBERT_BACKEND"); s != "" {
		return s
	}
	return "ref"
}

var (
	// Seed fuer die Gewichtsinitialisierung und Dropout-Masken
	Seed = Uint64("ALBERT_SEED", 0)
	// StrictGroups lehnt num_hidden_layers ab, die nicht durch num_hidden_groups teilbar sind
	StrictGroups = Bool("ALBERT_STRICT_GROUPS")
	// Training aktiviert Dropout bei der Auswertung im Referenz-Backend
	Training = Bool("ALBERT_TRAINING")
)

// Var gibt eine Environment-Variable zurueck
// Entfernt fuehrende/trailing Quotes und Leerzeichen
func Var(key string) string {
	return strings.Trim(strings.TrimSpace(os.Getenv(key)), "\"'")
}
