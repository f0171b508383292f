package helpers

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Seklfreak/mirrorbot/cache"
	"github.com/Seklfreak/mirrorbot/version"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sethgrid/pester"
)

var DEFAULT_UA = "mirrorbot/" + version.BOT_VERSION + " (+https://github.com/Seklfreak/mirrorbot)"

const (
	downloadTimeout    = 15 * time.Second
	downloadMaxRetries = 3
)

// Downloader fetches files over HTTP, retrying transport failures and 5xx responses.
type Downloader struct {
	client    *pester.Client
	userAgent string
}

func NewDownloader() *Downloader {
	client := pester.New()
	client.Concurrency = 1
	client.MaxRetries = downloadMaxRetries
	client.Backoff = pester.ExponentialJitterBackoff
	client.Timeout = downloadTimeout
	client.LogHook = func(entry pester.ErrEntry) {
		cache.GetLogger().WithField("module", "net").Debug(client.FormatError(entry))
	}

	return &Downloader{
		client:    client,
		userAgent: DEFAULT_UA,
	}
}

// Get returns the body of url, any status other than 200 is an error.
func (d *Downloader) Get(url string) ([]byte, error) {
	request, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building request")
	}
	request.Header.Set("User-Agent", d.userAgent)

	response, err := d.client.Do(request)
	if err != nil {
		return nil, errors.Wrap(err, "requesting "+url)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil, errors.New("expected status 200; got " + strconv.Itoa(response.StatusCode))
	}

	buf := bytes.NewBuffer(nil)
	if _, err = io.Copy(buf, response.Body); err != nil {
		return nil, errors.Wrap(err, "reading body")
	}

	cache.GetLogger().WithField("module", "net").Debugf(
		"downloaded %s (%s)", url, humanize.Bytes(uint64(buf.Len())))
	return buf.Bytes(), nil
}
