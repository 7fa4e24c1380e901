/*
	Copyright 2020 Alexander Vollschwitz <xelalex@gmx.net>

	Licensed under the Apache License, Version 2.0 (the "License");
	you may not use this file except in compliance with the License.
	You may obtain a copy of the License at

	  http://www.apache.org/licenses/LICENSE-2.0

	Unless required by applicable law or agreed to in writing, software
	distributed under the License is distributed on an "AS IS" BASIS,
	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
	See the License for the specific language governing permissions and
	limitations under the License.
*/

package docker

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/errdefs"
	"github.com/docker/docker/pkg/jsonmessage"
	spec "github.com/opencontainers/image-spec/specs-go/v1"
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/imagekit/internal/pkg/auth"
	klog "github.com/xelalexv/imagekit/internal/pkg/log"
)

// anonymous is the registry auth the daemon accepts for pushes without
// credentials.
var anonymous = base64.URLEncoding.EncodeToString([]byte("{}"))

//
type dockerClient struct {
	host    string
	version string
	client  *client.Client
	wrOut   io.Writer
}

//
func newClient(host, version string, out io.Writer) (*dockerClient, error) {
	dc := &dockerClient{
		host:    host,
		version: version,
		wrOut:   os.Stdout,
	}
	if out != nil {
		dc.wrOut = out
	}
	e := dc.open()
	return dc, e
}

//
func (dc *dockerClient) open() (err error) {
	if dc.client == nil {
		opts := []client.Opt{client.FromEnv}
		if dc.host != "" {
			opts = append(opts, client.WithHost(dc.host))
		}
		if dc.version != "" {
			opts = append(opts, client.WithVersion(dc.version))
		} else {
			opts = append(opts, client.WithAPIVersionNegotiation())
		}
		dc.client, err = client.NewClientWithOpts(opts...)
	}
	return
}

//
func (dc *dockerClient) ping(ctx context.Context, attempts int,
	sleep time.Duration) (res types.Ping, err error) {

	for i := 1; ; i++ {
		if res, err = dc.client.Ping(ctx); err == nil {
			return
		}
		if i >= attempts {
			break
		}
		select {
		case <-ctx.Done():
			return types.Ping{}, ctx.Err()
		case <-time.After(sleep):
		}
	}

	return types.Ping{}, fmt.Errorf(
		"unsuccessfully pinged Docker server %d times, last error: %s",
		attempts, err)
}

//
func (dc *dockerClient) close() error {
	if dc.client != nil {
		return dc.client.Close()
	}
	return nil
}

// hasImage tells whether the daemon has an image with the given reference.
func (dc *dockerClient) hasImage(ctx context.Context, ref string) (
	bool, error) {

	imgs, err := dc.client.ImageList(ctx, image.ListOptions{
		Filters: filters.NewArgs(filters.Arg("reference", ref)),
	})
	if err != nil {
		return false, err
	}
	return len(imgs) > 0, nil
}

//
func (dc *dockerClient) pullImage(ctx context.Context, ref string,
	allTags bool, platform string, creds *auth.Credentials,
	verbose bool) error {

	opts := image.PullOptions{
		All:          allTags,
		RegistryAuth: registryAuth(creds),
		Platform:     platform,
	}
	rc, err := dc.client.ImagePull(ctx, ref, opts)
	return dc.handleLog(rc, err, verbose)
}

//
func (dc *dockerClient) pushImage(ctx context.Context, ref string,
	platform *spec.Platform, creds *auth.Credentials, verbose bool) error {

	opts := image.PushOptions{
		RegistryAuth: registryAuth(creds),
		Platform:     platform,
	}
	rc, err := dc.client.ImagePush(ctx, ref, opts)
	return dc.handleLog(rc, err, verbose)
}

//
func (dc *dockerClient) tagImage(ctx context.Context, source,
	target string) error {
	return dc.client.ImageTag(ctx, source, target)
}

//
func (dc *dockerClient) handleLog(rc io.ReadCloser, err error,
	verbose bool) error {

	if err != nil {
		if errdefs.IsNotFound(err) {
			return fmt.Errorf("image not found: %v", err)
		}
		return err
	}
	defer rc.Close()
	out := dc.wrOut
	if !verbose {
		out = io.Discard
	}
	terminalFd := os.Stdout.Fd()
	isTerminal := dc.wrOut == os.Stdout && klog.ToTerminal
	log.Trace("streaming daemon messages")
	return jsonmessage.DisplayJSONMessagesStream(
		rc, out, terminalFd, isTerminal, nil)
}

//
func registryAuth(creds *auth.Credentials) string {
	if creds == nil || creds.IsEmpty() {
		return anonymous
	}
	return creds.DockerAuth()
}
