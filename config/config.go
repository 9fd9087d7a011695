/*
 * MIT License
 *
 * Copyright (c) 2022-2025 Arsene Tochemey Gandote
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

// Package config holds the validated settings of a driver and loads them from
// files and the environment.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/tochemey/dthread/dthread"
	gerrors "github.com/tochemey/dthread/errors"
	"github.com/tochemey/dthread/log"
)

// EnvPrefix is the prefix of the environment variables read by Load
const EnvPrefix = "DTHREAD"

const (
	keyName       = "name"
	keyStackSize  = "stack_size"
	keyRouted     = "routed"
	keyLogLevel   = "log_level"
	keyAllocLimit = "alloc_limit"
)

// Config represents the driver configuration
type Config struct {
	// Specifies the driver name. It names the worker thread as well.
	Name string
	// Specifies the worker stack size hint in kilowords. The default value is 1024
	StackSize int
	// Specifies whether replies are routed through the host thread instead of
	// being delivered by the worker. The default value is false
	Routed bool
	// Specifies the number of payload bytes that may be live at once.
	// Zero means unlimited
	AllocLimit int64
	// Specifies the logger to use
	Logger log.Logger
}

// New creates an instance of Config
func New(name string, options ...Option) (*Config, error) {
	if name == "" {
		return nil, gerrors.ErrNameRequired
	}

	config := &Config{
		Name:      name,
		StackSize: dthread.DefaultStackSize,
		Logger:    log.DefaultLogger,
	}

	for _, opt := range options {
		opt.Apply(config)
	}

	if config.StackSize < 0 {
		return nil, fmt.Errorf("%w: %d", gerrors.ErrInvalidStackSize, config.StackSize)
	}

	if config.AllocLimit < 0 {
		return nil, fmt.Errorf("invalid allocation limit: %d", config.AllocLimit)
	}

	return config, nil
}

// NewViper returns a viper instance holding the defaults and reading the
// DTHREAD_ prefixed environment variables
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyStackSize, dthread.DefaultStackSize)
	v.SetDefault(keyRouted, false)
	v.SetDefault(keyLogLevel, log.InfoLevel.String())
	v.SetDefault(keyAllocLimit, 0)
	return v
}

// Load builds a Config out of the settings held by v. When file is not empty
// it is read first; environment variables take precedence over it.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	level := log.ParseLevel(v.GetString(keyLogLevel))
	if level == log.InvalidLevel {
		return nil, fmt.Errorf("invalid log level: %s", v.GetString(keyLogLevel))
	}

	return New(v.GetString(keyName),
		WithStackSize(v.GetInt(keyStackSize)),
		WithRoutedDelivery(v.GetBool(keyRouted)),
		WithAllocLimit(v.GetInt64(keyAllocLimit)),
		WithLogger(log.NewZap(level, os.Stderr)),
	)
}
