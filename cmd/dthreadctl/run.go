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

package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/multierr"

	"github.com/tochemey/dthread/config"
	"github.com/tochemey/dthread/driver"
	"github.com/tochemey/dthread/dthread"
	"github.com/tochemey/dthread/poller"
	"github.com/tochemey/dthread/telemetry"
	"github.com/tochemey/dthread/term"
)

type runOptions struct {
	commands []int
	payload  string
	timeout  time.Duration
	metrics  bool
}

func newRunCmd(v *viper.Viper) *cobra.Command {
	opts := new(runOptions)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Send commands to a worker and print its replies",
		Example: `  dthreadctl run --command 1 --command 2
  dthreadctl run --routed --command 3 --payload hello`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v, v.GetString("config"))
			if err != nil {
				return err
			}
			return run(cmd.Context(), cmd.OutOrStdout(), cfg, opts)
		},
	}

	flags := runCmd.Flags()
	flags.IntSliceVar(&opts.commands, "command", []int{int(driver.CmdHello)}, "command to send, repeatable")
	flags.StringVar(&opts.payload, "payload", "", "payload sent with every command")
	flags.DurationVar(&opts.timeout, "timeout", 5*time.Second, "how long to wait for the replies")
	flags.BoolVar(&opts.metrics, "metrics", false, "print the thread metrics on exit")
	flags.Bool("routed", false, "route replies through the host thread")
	flags.Int("stack-size", dthread.DefaultStackSize, "worker stack size hint in kilowords")
	bindFlags(v, runCmd, map[string]string{
		"routed":     "routed",
		"stack_size": "stack-size",
	})

	return runCmd
}

func run(ctx context.Context, out io.Writer, cfg *config.Config, opts *runOptions) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	defer func() { err = multierr.Append(err, cfg.Logger.Flush()) }()

	p, err := poller.New(poller.WithLogger(cfg.Logger))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, p.Stop()) }()

	var driverOpts []driver.Option
	if opts.metrics {
		exporter, exportErr := stdoutmetric.New(stdoutmetric.WithWriter(out))
		if exportErr != nil {
			return exportErr
		}
		provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
		defer func() { err = multierr.Append(err, provider.Shutdown(context.WithoutCancel(ctx))) }()
		driverOpts = append(driverOpts, driver.WithTelemetry(telemetry.New(telemetry.WithMeterProvider(provider))))
	}

	replies := make(chan *dthread.Reply, len(opts.commands))
	d := driver.New(cfg, p, driver.SinkFunc(func(reply *dthread.Reply) error {
		replies <- reply
		return nil
	}), driverOpts...)

	if err := d.Start(); err != nil {
		return err
	}

	caller := dthread.NewID()
	for _, command := range opts.commands {
		status, err := d.Control(caller, dthread.Command(command), []byte(opts.payload))
		if err != nil {
			return multierr.Append(err, d.Stop())
		}
		fmt.Fprintf(out, "sent command %d ref=%d\n", command, binary.BigEndian.Uint32(status[1:]))
	}

	deadline := time.Now().Add(opts.timeout)
	for len(d.Outstanding()) > 0 && time.Now().Before(deadline) && ctx.Err() == nil {
		if _, err := p.Poll(10 * time.Millisecond); err != nil {
			return multierr.Append(err, d.Stop())
		}
		printReplies(out, replies)
	}

	unanswered := d.Outstanding()
	if err := d.Stop(); err != nil {
		return err
	}
	printReplies(out, replies)

	for _, ref := range unanswered {
		fmt.Fprintf(out, "no reply for ref=%d\n", ref)
	}
	return nil
}

func printReplies(out io.Writer, replies <-chan *dthread.Reply) {
	for {
		select {
		case reply := <-replies:
			fmt.Fprintf(out, "reply %s ref=%d to=%s %s\n", reply.Command, reply.Ref, reply.To, render(reply.Payload))
		default:
			return
		}
	}
}

func render(payload []byte) string {
	decoded, err := term.Decode(payload)
	if err != nil {
		return strconv.Quote(string(payload))
	}
	return term.Format(decoded)
}
