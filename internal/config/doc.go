// Package config loads mfp's two configuration inputs: the swagger sources
// file (LoadSources) naming the APIs to compile, and the MFP_* environment
// variables (LoadFromEnv) that tune the compiler, cache, and sandbox.
//
// Precedence is defaults < environment; the sources file carries no
// defaults of its own — every server entry must name a swagger document.
package config
