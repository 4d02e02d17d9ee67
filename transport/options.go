package transport

// Option tweaks the transport returned by New or Get.
type Option func(*options)

// options is comparable so it can key the singleton instances.
type options struct {
	DisableConnectionPooling bool
	EnableDNSCache           bool
	InsecureTLS              bool
}

// DisableConnectionPooling turns off keep-alives.
func DisableConnectionPooling(o *options) {
	o.DisableConnectionPooling = true
}

// EnableDNSCache resolves hosts through a shared caching resolver.
func EnableDNSCache(o *options) {
	o.EnableDNSCache = true
}

// InsecureTLS skips certificate verification. Only meant for tests against
// self-signed validation servers.
func InsecureTLS(o *options) {
	o.InsecureTLS = true
}

func readOptions(opts ...Option) options {
	var out options

	for _, o := range opts {
		if o != nil {
			o(&out)
		}
	}

	return out
}
