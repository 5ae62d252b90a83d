package s3

// Options defines options for S3-compatible storage.
type Options struct {
	// Endpoint is the host or host:port of the S3-compatible server.
	Endpoint       string `json:"endpoint"`
	DoNotUseTLS    bool   `json:"doNotUseTLS,omitempty"`
	DoNotVerifyTLS bool   `json:"doNotVerifyTLS,omitempty"`

	BucketName string `json:"bucket"`

	// Prefix is prepended to all object keys managed by this storage.
	Prefix string `json:"prefix,omitempty"`

	AccessKeyID     string `json:"accessKeyID"`
	SecretAccessKey string `json:"secretAccessKey"`
	SessionToken    string `json:"sessionToken,omitempty"`

	Region string `json:"region,omitempty"`

	// MultipartThreshold is the object size in bytes at or above which uploads
	// switch to the multipart protocol. Zero selects the default.
	MultipartThreshold int64 `json:"multipartThreshold,omitempty"`

	// PartSize is the size of each multipart chunk in bytes. All parts are
	// exactly this size except the last one; some S3-compatible servers
	// reject unequal non-final parts. Zero selects the default.
	PartSize int64 `json:"partSize,omitempty"`
}

const (
	defaultMultipartThreshold = 100 << 20 // 100 MiB
	defaultPartSize           = 50 << 20  // 50 MiB

	// minimum part size accepted by S3-compatible servers.
	minPartSize = 5 << 20
)

func (o *Options) applyDefaults() {
	if o.MultipartThreshold <= 0 {
		o.MultipartThreshold = defaultMultipartThreshold
	}

	if o.PartSize <= 0 {
		o.PartSize = defaultPartSize
	}

	if o.PartSize < minPartSize {
		o.PartSize = minPartSize
	}
}
