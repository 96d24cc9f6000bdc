// Copyright 2025 GreonXpert
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engineconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEmptyInputKeepsDefaults(t *testing.T) {
	got, err := UnmarshalAndValidate(nil)
	if err != nil {
		t.Fatalf("UnmarshalAndValidate: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), got); diff != "" {
		t.Errorf("config diff (-want +got):\n%s", diff)
	}
}

func TestPartialOverrideKeepsOtherDefaults(t *testing.T) {
	input := `
server:
  listen_address: 127.0.0.1:9000
logging:
  file: /var/log/reduction/engine.log
`
	got, err := UnmarshalAndValidate([]byte(input))
	if err != nil {
		t.Fatalf("UnmarshalAndValidate: %v", err)
	}
	if got.Server.ListenAddress != "127.0.0.1:9000" {
		t.Errorf("ListenAddress = %q", got.Server.ListenAddress)
	}
	if got.Logging.File != "/var/log/reduction/engine.log" {
		t.Errorf("Logging.File = %q", got.Logging.File)
	}
	if got.Server.ShutdownSeconds != 15 {
		t.Errorf("ShutdownSeconds = %d, want the default 15", got.Server.ShutdownSeconds)
	}
	if got.Events.BufferSize != 64 {
		t.Errorf("BufferSize = %d, want the default 64", got.Events.BufferSize)
	}
}

func TestUnknownFieldRejected(t *testing.T) {
	_, err := UnmarshalAndValidate([]byte("server:\n  listen_adress: 0.0.0.0:8095\n"))
	if err == nil {
		t.Fatal("misspelled field accepted")
	}
	if !strings.Contains(err.Error(), "not valid YAML") {
		t.Errorf("error = %v", err)
	}
}

func TestInvalidListenAddressRejected(t *testing.T) {
	_, err := UnmarshalAndValidate([]byte("server:\n  listen_address: not-an-address\n"))
	if err == nil {
		t.Fatal("bad listen address accepted")
	}
	if !strings.Contains(err.Error(), "failed validation") {
		t.Errorf("error = %v", err)
	}
}

func TestNegativeShutdownRejected(t *testing.T) {
	_, err := UnmarshalAndValidate([]byte("server:\n  listen_address: 0.0.0.0:8095\n  shutdown_seconds: -1\n"))
	if err == nil {
		t.Fatal("negative shutdown accepted")
	}
}

func TestReadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("events:\n  buffer_size: 256\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	got, err := ReadConfigFile(path)
	if err != nil {
		t.Fatalf("ReadConfigFile: %v", err)
	}
	if got.Events.BufferSize != 256 {
		t.Errorf("BufferSize = %d, want 256", got.Events.BufferSize)
	}

	defaults, err := ReadConfigFile("")
	if err != nil {
		t.Fatalf("ReadConfigFile(\"\"): %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), defaults); diff != "" {
		t.Errorf("empty path diff (-want +got):\n%s", diff)
	}

	if _, err := ReadConfigFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file accepted")
	}
}
