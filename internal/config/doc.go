// Package config loads, normalizes, and validates dcpkit configuration.
//
// Settings come from a TOML file (explicit path, ~/.config/dcpkit/config.toml,
// or ./dcpkit.toml) layered over repository defaults, with tilde expansion on
// every path and DCPKIT_SIGNING_KEY as an environment fallback for the signing
// key. The [metadata] section carries the issuer/creator/product stamp that
// every written package uses; it is passed explicitly into write calls rather
// than held in process-wide state.
package config
