package clients

import "time"

const (
	MAX_RETRIES          = 3
	INITIAL_BACKOFF      = 1 * time.Second
	USER_AGENT           = "xpulse-client/1.0 (+https://github.com/spacesedan/xpulse)"
	GROK_DEFAULT_BASEURL = "https://api.x.ai/v1"
	MAX_IMAGE_BYTES      = 5 << 20
)
