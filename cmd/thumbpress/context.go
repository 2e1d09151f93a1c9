package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"thumbpress/internal/config"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// daemonReachable probes the admin endpoint of a running daemon.
func (c *commandContext) daemonReachable() bool {
	cfg := c.configValue()
	if cfg == nil || strings.TrimSpace(cfg.Paths.HealthBind) == "" {
		return false
	}
	conn, err := net.DialTimeout("tcp", cfg.Paths.HealthBind, time.Second)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// adminGet fetches a JSON document from the running daemon.
func (c *commandContext) adminGet(path string, out any) error {
	cfg := c.configValue()
	if cfg == nil {
		return fmt.Errorf("config not loaded")
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s%s", cfg.Paths.HealthBind, path))
	if err != nil {
		return fmt.Errorf("contact daemon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("daemon responded %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// adminPost sends a JSON document to the running daemon.
func (c *commandContext) adminPost(path string, payload, out any) error {
	cfg := c.configValue()
	if cfg == nil {
		return fmt.Errorf("config not loaded")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(
		fmt.Sprintf("http://%s%s", cfg.Paths.HealthBind, path),
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return fmt.Errorf("contact daemon: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("daemon responded %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
