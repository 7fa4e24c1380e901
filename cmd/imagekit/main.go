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

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/xelalexv/imagekit/internal/pkg/imagelist"
	klog "github.com/xelalexv/imagekit/internal/pkg/log"
	"github.com/xelalexv/imagekit/internal/pkg/sync"
)

//
func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

//
func run(args []string, out, errOut io.Writer) int {

	fs := flag.NewFlagSet("imagekit", flag.ContinueOnError)
	fs.SetOutput(errOut)

	configFile := fs.String("config", "", "path to config file")
	listFile := fs.String("list", "",
		"load image list and print the canonical image names")
	logLevel := fs.String("loglevel", "info",
		"log level: trace, debug, info, warn, error")
	logJSON := fs.Bool("logjson", false, "log in JSON format")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := klog.Setup(*logLevel, *logJSON); err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	switch {
	case *listFile != "":
		return exitCode(list(*listFile, out))
	case *configFile != "":
		return exitCode(syncFromConfig(*configFile))
	}

	fmt.Fprintln(errOut,
		"synopsis: imagekit -config={config file} | -list={image list}")
	return 1
}

// list prints the canonical name of each image in the image list, followed
// by its extra tags, if any.
func list(file string, out io.Writer) error {

	images, err := imagelist.Load(file)
	if err != nil {
		return err
	}

	for _, name := range images.Names() {
		ref, _ := images.Get(name)
		if extra := ref.ExtraTags(); len(extra) > 0 {
			tags := make([]string, 0, len(extra))
			for _, e := range extra {
				tags = append(tags, e.Tag())
			}
			fmt.Fprintf(out, "%s +%s\n", name, strings.Join(tags, ","))
		} else {
			fmt.Fprintln(out, name)
		}
	}

	return nil
}

// syncFromConfig runs the config until done, reloading it whenever it
// changes.
func syncFromConfig(file string) error {

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	for {

		conf, err := sync.LoadConfig(file)
		if err != nil {
			return err
		}

		s, err := sync.New(conf)
		if err != nil {
			return err
		}

		done := make(chan bool)
		go func() {
			select {
			case <-sig:
				log.Info("received signal, shutting down")
				s.Shutdown()
			case <-done:
			}
		}()

		err = s.SyncFromConfig(conf)
		close(done)
		s.Dispose()

		if !errors.Is(err, sync.ErrConfigChanged) {
			return err
		}
		log.WithField("config", file).Info("reloading config")
	}
}

//
func exitCode(err error) int {
	if klog.Error(err) {
		return 1
	}
	return 0
}
