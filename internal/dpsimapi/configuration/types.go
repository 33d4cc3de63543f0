package configuration

import (
	"time"

	"github.com/apache/pulsar-client-go/pulsar"

	commonconfig "github.com/sogno-platform/dpsim-api/internal/common/config"
)

type ApiConfig struct {
	HttpPort    uint16 `validate:"required"`
	MetricsPort uint16 `validate:"required"`
	// Upper bound on the processing time of a single submission, across all stages.
	SubmissionTimeout time.Duration `validate:"required"`
	// Maximum size of a multipart request body, in bytes.
	MaxUploadSize int64 `validate:"gt=0"`
	// Number of attempts made at startup to reach the store and the broker.
	StartupAttempts uint
	StartupDelay    time.Duration
	// How often store derived metrics, such as the number of allocated ids, are refreshed.
	MetricsRefreshInterval time.Duration `validate:"required"`
	// Base url of the api documentation; GET /api links every endpoint to an anchor on it.
	DocumentationUrl string `validate:"omitempty,url"`

	Redis       commonconfig.RedisConfig
	Archive     ArchiveConfig
	Publisher   PublisherConfig
	FileService FileServiceConfig
}

type ArchiveConfig struct {
	MaxEntries   int   `validate:"gt=0"`
	MaxEntrySize int64 `validate:"gt=0"`
	MaxTotalSize int64 `validate:"gt=0"`
}

// PublisherConfig selects the channel jobs are handed to the execution layer on.
// Exactly one of Jetstream and Pulsar is used; Backend names which.
type PublisherConfig struct {
	Backend   string `validate:"oneof=jetstream pulsar"`
	Jetstream JetstreamConfig
	Pulsar    PulsarConfig
}

type JetstreamConfig struct {
	Servers    []string
	StreamName string
	Subject    string
	Replicas   int
	MaxAgeDays int
	InMemory   bool
	// Window within which a republished job with the same id is dropped by the broker.
	DuplicateWindow time.Duration
	ConnTimeout     time.Duration
}

type PulsarConfig struct {
	// Pulsar URL
	URL string
	// Path to the trusted TLS certificate file (must exist)
	TLSTrustCertsFilePath string
	// Whether Pulsar client accept untrusted TLS certificate from broker
	TLSAllowInsecureConnection bool
	// Whether the Pulsar client will validate the hostname in the broker's TLS Cert matches the actual hostname.
	TLSValidateHostname bool
	// Max number of connections to a single broker that will be kept in the pool. (Default: 1 connection)
	MaxConnectionsPerBroker int
	// Whether Pulsar authentication is enabled
	AuthenticationEnabled bool
	// Only JWT authentication is supported currently
	AuthenticationType string
	// Path to the JWT token (must exist). This must be set if AuthenticationType is "JWT"
	JwtTokenPath string
	// Topic simulation jobs are published to
	JobsTopic string
	// Compression to use.  Valid values are "None", "LZ4", "Zlib", "Zstd".  Default is "None"
	CompressionType pulsar.CompressionType
	// Compression Level to use.  Valid values are "Default", "Better", "Faster".  Default is "Default"
	CompressionLevel pulsar.CompressionLevel
	// Maximum time to wait for the broker to confirm a message
	SendTimeout time.Duration
}

type FileServiceConfig struct {
	// Base url of the sogno file service, e.g., http://sogno-file-service:8080/api/files.
	// Model ids are not resolved to urls when empty.
	Url      string
	Timeout  time.Duration
	RetryMax int
	// How long a resolved url is reused for the same model id. Zero disables caching.
	CacheTTL time.Duration
}
