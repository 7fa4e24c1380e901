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

package test

import (
	"os"
	"testing"
)

//
const (
	// Docker setup
	EnvDockerHost = "IMAGEKIT_TEST_DOCKERHOST"

	// ECR
	EnvECRRegistry = "IMAGEKIT_TEST_ECR_REGISTRY"
	EnvECRRepo     = "IMAGEKIT_TEST_ECR_REPO"
)

//
type Params struct {
	DockerHost  string
	ECRRegistry string
	ECRRepo     string
}

//
func GetParams() *Params {

	ret := &Params{
		DockerHost:  os.Getenv(EnvDockerHost),
		ECRRegistry: os.Getenv(EnvECRRegistry),
		ECRRepo:     os.Getenv(EnvECRRepo),
	}

	if ret.ECRRepo == "" {
		ret.ECRRepo = "imagekit/test"
	}

	return ret
}

// SkipIfNoDocker skips tests that need a reachable Docker daemon, which has
// to be announced explicitly via the environment.
func SkipIfNoDocker(t *testing.T) *Params {
	p := GetParams()
	if p.DockerHost == "" {
		t.Skipf("%s not set, skipping Docker tests", EnvDockerHost)
	}
	return p
}
