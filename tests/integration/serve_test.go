package integration

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()
	return addr
}

// Test7_ServeHTTP runs the HTTP server, drives it over the API and checks
// that it exits cleanly on interrupt.
func Test7_ServeHTTP(t *testing.T) {
	env := NewTestEnv(t)
	env.MustRun("add", "--title", "Alien", "--genre", "Horror", "--rating", "4")

	addr := freeAddr(t)
	base := "http://" + addr
	cmd := env.Command("serve", "--listen", addr)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	t.Cleanup(func() { cmd.Process.Kill() })

	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(10 * time.Second)
	for {
		resp, err := client.Get(base + "/health/live")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				break
			}
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not become ready: %v\nstderr: %s", err, stderr.String())
		}
		time.Sleep(50 * time.Millisecond)
	}

	resp, err := client.Post(base+"/api/v1/records", "application/json",
		strings.NewReader(`{"title":"Up","genre":"Family","rating":"5"}`))
	if err != nil {
		t.Fatal(err)
	}
	var up Record
	if err := json.NewDecoder(resp.Body).Decode(&up); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated || up.Rating != 5 {
		t.Fatalf("create: status %d, record %+v", resp.StatusCode, up)
	}

	resp, err = client.Post(base+"/api/v1/records", "application/json", strings.NewReader(`{"title":" "}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank title: status %d, want 400", resp.StatusCode)
	}

	resp, err = client.Get(base + "/api/v1/records?sort=highest")
	if err != nil {
		t.Fatal(err)
	}
	var list struct {
		Records []Record `json:"records"`
		Loaded  bool     `json:"loaded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if !list.Loaded || len(list.Records) != 2 || list.Records[0].Title != "Up" {
		t.Errorf("unexpected list: %+v", list)
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		t.Fatal(err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve exited with %v\nstderr: %s", err, stderr.String())
		}
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop after interrupt")
	}

	// Records created over HTTP are visible to the CLI.
	got := ParseJSON[[]Record](t, env.MustRun("--json", "list", "--genre", "Family").Stdout)
	if len(got) != 1 || got[0].ID != up.ID {
		t.Errorf("CLI list after serve: %+v", got)
	}
}
