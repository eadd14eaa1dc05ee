/*
Copyright © 2026 the LagFilter authors.
This file is part of LagFilter.

LagFilter is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

LagFilter is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with LagFilter.  If not, see <http://www.gnu.org/licenses/>.
*/

package lagfilterutil

import (
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
)

// maybeDownload checks if the input is an existing file locally. If it
// is not but is an http:// or https:// address, it downloads the file
// and returns the path to the downloaded copy; otherwise the given path
// is returned unchanged. c is a channel across which error and logging
// messages will be sent.
func maybeDownload(path string, c chan string) string {
	// Check if local file exists. If it does, return the given path.
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return path
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return downloadHTTP(path, c)
	}
	return path
}

// downloadHTTP downloads a file from the specified URL and returns the
// path to the downloaded file, retrying transient failures with
// exponential backoff.
func downloadHTTP(path string, c chan string) string {
	// Prepare a temporary directory for the downloads.
	dir, err := ioutil.TempDir("", "lagfilter")
	if err != nil {
		panic(fmt.Errorf("lagfilterutil: failed creating temporary download directory: %v", err))
	}
	local := filepath.Join(dir, filepath.Base(path))

	get := func() error {
		w, err := os.Create(local)
		if err != nil {
			panic(fmt.Errorf("lagfilterutil: failed creating file for download: %v", err))
		}
		defer w.Close()
		resp, err := http.Get(path)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("lagfilterutil: downloading %s: %s", path, resp.Status)
		}
		_, err = io.Copy(w, resp.Body)
		return err
	}
	err = backoff.RetryNotify(get, backoff.NewExponentialBackOff(), func(err error, d time.Duration) {
		c <- fmt.Sprintf("retrying download of %s after error: %v\n", path, err)
	})
	if err != nil {
		c <- err.Error()
		return path
	}
	return local
}
