package config

const (
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultProductName        = "dcpkit"
	defaultCompanyName        = "dcpkit"
	defaultUniqueNameAttempts = 10000
	defaultDigestCachePath    = "~/.cache/dcpkit/digests.db"
	defaultSignerName         = "dcpkit"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Metadata: Metadata{
			CompanyName:    defaultCompanyName,
			ProductName:    defaultProductName,
			ProductVersion: Version,
		},
		Combine: Combine{
			UniqueNameAttempts: defaultUniqueNameAttempts,
			LockOutput:         true,
		},
		DigestCache: DigestCache{
			Path: defaultDigestCachePath,
		},
		Signing: Signing{
			SignerName: defaultSignerName,
		},
	}
}
