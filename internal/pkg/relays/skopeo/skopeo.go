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

package skopeo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strings"

	spec "github.com/opencontainers/image-spec/specs-go/v1"
	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/imagekit/internal/pkg/relays"
)

const defaultSkopeoBinary = "skopeo"
const defaultCertsBaseDir = "/etc/skopeo/certs.d"

//
type tagList struct {
	Repository string   `json:"Repository"`
	Tags       []string `json:"Tags"`
}

// runner executes the skopeo binary.
type runner struct {
	binary   string
	certsDir string
	out      io.Writer
}

//
func (r *runner) certsDirForRegistry(reg string) string {
	return fmt.Sprintf("%s/%s", r.certsDir, withoutPort(reg))
}

//
func (r *runner) listAllTags(ctx context.Context, ref string,
	ep relays.Endpoint) ([]string, error) {

	ret, err := r.info(ctx, []string{"list-tags"}, ref, ep)
	if err != nil {
		return nil,
			fmt.Errorf("error listing image tags for ref '%s': %v", ref, err)
	}

	list, err := decodeTagList(ret)
	if err != nil {
		return nil, err
	}
	return list.Tags, nil
}

//
func (r *runner) inspect(ctx context.Context, ref string,
	platform *spec.Platform, format string, ep relays.Endpoint) (
	string, error) {

	cmd := addPlatformOverrides([]string{"inspect"}, platform)
	if format != "" {
		cmd = append(cmd, fmt.Sprintf("--format=%s", format))
	}

	if insp, err := r.info(ctx, cmd, ref, ep); err != nil {
		return "", fmt.Errorf(
			"error inspecting image for ref '%s': %v", ref, err)
	} else {
		return strings.TrimSpace(string(insp)), nil
	}
}

//
func (r *runner) info(ctx context.Context, cmd []string, ref string,
	ep relays.Endpoint) ([]byte, error) {

	if ep.SkipTLSVerify {
		cmd = append(cmd, "--tls-verify=false")
	}

	if ep.Creds != nil && !ep.Creds.IsEmpty() {
		cmd = append(cmd, fmt.Sprintf("--creds=%s", ep.Creds.UserPass()))
	}

	if reg := registryOf(ref); reg != "" {
		cmd = append(cmd, fmt.Sprintf("--cert-dir=%s",
			r.certsDirForRegistry(reg)))
	}

	cmd = append(cmd, "docker://"+ref)

	bufOut := new(bytes.Buffer)
	bufErr := new(bytes.Buffer)

	if err := r.run(ctx, bufOut, bufErr, true, cmd...); err != nil {
		return nil, fmt.Errorf("%s, %v", strings.TrimSpace(bufErr.String()),
			err)
	}

	return bufOut.Bytes(), nil
}

//
func addPlatformOverrides(cmd []string, platform *spec.Platform) []string {

	if platform != nil {
		if platform.OS != "" {
			cmd = append(cmd, fmt.Sprintf("--override-os=%s", platform.OS))
		}
		if platform.Architecture != "" {
			cmd = append(cmd,
				fmt.Sprintf("--override-arch=%s", platform.Architecture))
		}
		if platform.Variant != "" {
			cmd = append(cmd,
				fmt.Sprintf("--override-variant=%s", platform.Variant))
		}
	}

	return cmd
}

//
func chooseOutStream(out io.Writer, verbose, isErrorStream bool) io.Writer {
	if verbose {
		if out != nil {
			return out
		}
		if isErrorStream {
			return log.StandardLogger().WriterLevel(log.ErrorLevel)
		}
		return log.StandardLogger().WriterLevel(log.InfoLevel)
	}
	return io.Discard
}

//
func (r *runner) run(ctx context.Context, outWr, errWr io.Writer,
	verbose bool, args ...string) error {

	log.WithField("args", args).Trace("running skopeo")
	cmd := exec.CommandContext(ctx, r.binary, args...)

	cmd.Stdout = chooseOutStream(outWr, verbose, false)
	cmd.Stderr = chooseOutStream(errWr, verbose, true)

	if err := cmd.Start(); err != nil {
		return err
	}

	return cmd.Wait()
}

//
func decodeTagList(tl []byte) (*tagList, error) {
	var ret tagList
	if err := json.Unmarshal(tl, &ret); err != nil {
		return nil, fmt.Errorf("cannot decode tag list: %v", err)
	}
	return &ret, nil
}

// registryOf returns the registry part of a canonical name.
func registryOf(ref string) string {
	if ix := strings.Index(ref, "/"); ix > 0 {
		return ref[:ix]
	}
	return ""
}

//
func withoutPort(registry string) string {
	ix := strings.Index(registry, ":")
	if ix == -1 {
		return registry
	}
	return registry[:ix]
}
