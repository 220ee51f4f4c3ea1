package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/errors"

	"github.com/mbocsi/dartlink/client"
	"github.com/mbocsi/dartlink/config"
	"github.com/mbocsi/dartlink/logic"
	"github.com/mbocsi/dartlink/proto"
)

const usage = `usage: dartlink-client [flags] <command> [args]

commands:
  test                      connect, ping and read state, pose and joints
  ping                      check that the server answers
  call <Function> [json]    call one function with a JSON args object
  sequence <json>           run a JSON array of {"function", "args"} commands
  home                      move to the home position
  stop                      emergency stop
  reset                     reset the robot after an emergency stop`

func main() {
	cfg := config.DefaultClientConfig()
	args, err := config.Load("dartlink-client", cfg, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := config.SetupLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, args, os.Stdout); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newLink(ctx context.Context, cfg *config.ClientConfig) (*client.Link, error) {
	addr := cfg.Addr()
	if cfg.Discover {
		service, err := client.Discover(ctx, 5*time.Second)
		if err != nil {
			return nil, errors.Annotate(err, "discover server")
		}
		addr = service.Endpoint()
	}

	opts := []client.Option{client.WithTimeout(cfg.Timeout)}
	if cfg.WebSocket {
		opts = append(opts, client.WithDialer(client.NewWebSocketDialer()))
	}
	return client.NewLink(addr, cfg.Token, opts...), nil
}

func run(ctx context.Context, cfg *config.ClientConfig, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	link, err := newLink(ctx, cfg)
	if err != nil {
		return err
	}
	defer link.Disconnect()
	arm := logic.NewArm(link)

	switch cmd := args[0]; cmd {
	case "test":
		return communicationTest(ctx, link, out)

	case "ping":
		ok := link.Ping(ctx)
		fmt.Fprintf(out, "ping %s: %t\n", link.Addr(), ok)
		if !ok {
			return errors.Errorf("server at %s did not answer", link.Addr())
		}
		return nil

	case "call":
		if len(args) < 2 {
			return errors.New(usage)
		}
		var callArgs map[string]any
		if len(args) > 2 {
			if err := json.Unmarshal([]byte(args[2]), &callArgs); err != nil {
				return errors.Annotate(err, "parse args")
			}
		}
		resp, err := link.Call(ctx, args[1], callArgs)
		if err != nil {
			return err
		}
		return printResponse(out, resp)

	case "sequence":
		if len(args) < 2 {
			return errors.New(usage)
		}
		var commands []proto.Command
		if err := json.Unmarshal([]byte(args[1]), &commands); err != nil {
			return errors.Annotate(err, "parse commands")
		}
		resp, err := link.Sequence(ctx, commands)
		if err != nil {
			return err
		}
		return printResponse(out, resp)

	case "home":
		return printEnvelope(out, arm.Home(ctx))
	case "stop":
		return printEnvelope(out, arm.EmergencyStop(ctx))
	case "reset":
		return printEnvelope(out, arm.ResetRobot(ctx))

	default:
		return errors.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

// communicationTest checks the connection and reads back basic state.
func communicationTest(ctx context.Context, link *client.Link, out io.Writer) error {
	fmt.Fprintln(out, "Starting communication test...")
	if !link.Ping(ctx) {
		return errors.Errorf("connection to %s failed, is the server running?", link.Addr())
	}
	fmt.Fprintln(out, "Connection successful")

	failed := 0
	check := func(name string, v any, err error) {
		if err != nil {
			failed++
			fmt.Fprintf(out, "FAIL %s: %v\n", name, err)
			return
		}
		fmt.Fprintf(out, "OK   %s: %v\n", name, v)
	}

	check("Ping", link.Ping(ctx), nil)
	state, err := link.RobotState(ctx)
	check("Robot state", state, err)
	pose, err := link.CurrentPose(ctx)
	check("Current pose", pose, err)
	joints, err := link.JointAngles(ctx)
	check("Joint angles", joints, err)

	if failed > 0 {
		return errors.Errorf("%d checks failed", failed)
	}
	return nil
}

func printResponse(out io.Writer, resp proto.Response) error {
	if err := writeJSON(out, resp); err != nil {
		return err
	}
	if !resp.OK() {
		return errors.Errorf("server returned error: %s", resp.Message())
	}
	return nil
}

func printEnvelope(out io.Writer, env logic.Envelope) error {
	if err := writeJSON(out, env); err != nil {
		return err
	}
	if !env.OK() {
		return errors.Errorf("%s failed: %s", env.Function, env.Error)
	}
	return nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
