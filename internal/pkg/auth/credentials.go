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

package auth

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// encoding is the form in which credentials were given in the config.
type encoding int

const (
	encodingUserPass encoding = iota // base64 of user:password
	encodingJSON                     // base64 of {"username":..., "password":...}
)

//
type authJSON struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

//
func NewCredentialsFromBasic(username, password string) (*Credentials, error) {
	if username == "" && password != "" {
		return nil, fmt.Errorf("password given without username")
	}
	return &Credentials{username: username, password: password}, nil
}

// NewCredentialsFromAuth decodes an auth string as it appears in the task
// config, i.e. base64 encoded JSON ({"username": ..., "password": ...}) or
// base64 encoded user:password. An empty string yields empty credentials,
// "none" explicitly disables authentication.
func NewCredentialsFromAuth(auth string) (*Credentials, error) {

	if auth == "" || auth == "none" {
		return &Credentials{}, nil
	}

	data, err := base64.StdEncoding.DecodeString(auth)
	if err != nil {
		return nil, fmt.Errorf("auth is not valid base64: %v", err)
	}

	var doc authJSON
	if json.Unmarshal(data, &doc) == nil {
		return &Credentials{
			username: doc.Username,
			password: doc.Password,
			encoding: encodingJSON,
		}, nil
	}

	user, pass, _ := strings.Cut(string(data), ":")
	return &Credentials{username: user, password: pass}, nil
}

// Credentials are passed through to the relays as configured, they are never
// refreshed or exchanged for tokens.
type Credentials struct {
	username string
	password string
	encoding encoding
}

//
func (c *Credentials) Username() string {
	return c.username
}

//
func (c *Credentials) Password() string {
	return c.password
}

// IsEmpty is true for nil credentials and for credentials without user and
// password.
func (c *Credentials) IsEmpty() bool {
	return c == nil || (c.username == "" && c.password == "")
}

// Auth returns the credentials in the encoding in which they were configured.
func (c *Credentials) Auth() string {
	if c.IsEmpty() {
		return ""
	}
	if c.encoding == encodingJSON {
		return c.DockerAuth()
	}
	return base64.StdEncoding.EncodeToString([]byte(c.UserPass()))
}

// DockerAuth returns the credentials as the base64 encoded JSON the Docker
// daemon expects for registry auth.
func (c *Credentials) DockerAuth() string {
	if c.IsEmpty() {
		return ""
	}
	data, err := json.Marshal(&authJSON{Username: c.username, Password: c.password})
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(data)
}

// UserPass returns the credentials as user:password, the way command line
// tools like skopeo take them.
func (c *Credentials) UserPass() string {
	if c.IsEmpty() {
		return ""
	}
	return c.username + ":" + c.password
}
