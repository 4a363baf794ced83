// Package main provides a small command-line client for an agentkit service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/xiaot623/agentkit/sdk"
)

const usage = `usage: agentctl [-addr URL] <command> [args]

commands:
  register -name NAME -version V -endpoint URL [-caps a,b]
  agent ID
  tools
  send -to ID -from ID -type TYPE [-payload JSON] [-session ID]
  tool -to ID -from ID -name TOOL [-params JSON]
  report-state -agent ID -state STATE [-details JSON]
`

func main() {
	addr := flag.String("addr", envOr("AGENTKIT_URL", "http://localhost:8000"), "agentkit base URL")
	timeout := flag.Duration("timeout", 30*time.Second, "request timeout")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := sdk.NewClient(*addr)
	cmd, args := flag.Arg(0), flag.Args()[1:]

	var err error
	switch cmd {
	case "register":
		err = runRegister(ctx, client, args)
	case "agent":
		err = runAgent(ctx, client, args)
	case "tools":
		err = runTools(ctx, client)
	case "send":
		err = runSend(ctx, client, args)
	case "tool":
		err = runTool(ctx, client, args)
	case "report-state":
		err = runReportState(ctx, args)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func runRegister(ctx context.Context, client *sdk.Client, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	name := fs.String("name", "", "agent name")
	version := fs.String("version", "1.0", "agent version")
	endpoint := fs.String("endpoint", "", "callback address")
	caps := fs.String("caps", "", "comma separated capabilities")
	_ = fs.Parse(args)

	reg := sdk.Registration{AgentName: *name, Version: *version, ContactEndpoint: *endpoint}
	if *caps != "" {
		reg.Capabilities = strings.Split(*caps, ",")
	}
	id, err := client.RegisterAgent(ctx, reg)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func runAgent(ctx context.Context, client *sdk.Client, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("agent id required")
	}
	agent, err := client.GetAgent(ctx, args[0])
	if err != nil {
		return err
	}
	return printJSON(agent)
}

func runTools(ctx context.Context, client *sdk.Client) error {
	names, err := client.ListTools(ctx)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func runSend(ctx context.Context, client *sdk.Client, args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	to := fs.String("to", "", "target agent id")
	from := fs.String("from", "agentctl", "sender id")
	msgType := fs.String("type", "", "message type")
	payload := fs.String("payload", "{}", "payload JSON")
	session := fs.String("session", "", "session id")
	_ = fs.Parse(args)

	msg := sdk.Message{SenderID: *from, MessageType: *msgType, Payload: json.RawMessage(*payload)}
	if *session != "" {
		msg.SessionContext = &sdk.SessionContext{SessionID: *session}
	}
	res, err := client.SendMessage(ctx, *to, msg)
	if err != nil {
		return err
	}
	if res.Accepted {
		fmt.Println(res.Response.Message)
		return nil
	}
	return printJSON(res.Response.Data)
}

func runTool(ctx context.Context, client *sdk.Client, args []string) error {
	fs := flag.NewFlagSet("tool", flag.ExitOnError)
	to := fs.String("to", "agentkit", "target agent id")
	from := fs.String("from", "agentctl", "sender id")
	name := fs.String("name", "", "tool name")
	params := fs.String("params", "{}", "parameters JSON")
	_ = fs.Parse(args)

	var p map[string]any
	if err := json.Unmarshal([]byte(*params), &p); err != nil {
		return fmt.Errorf("invalid -params: %w", err)
	}
	out, err := client.InvokeTool(ctx, *to, *from, *name, p)
	if err != nil {
		return err
	}
	return printJSON(out)
}

func runReportState(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("report-state", flag.ExitOnError)
	agent := fs.String("agent", "", "agent id")
	state := fs.String("state", "", "state label")
	details := fs.String("details", "{}", "details JSON")
	_ = fs.Parse(args)

	var d map[string]any
	if err := json.Unmarshal([]byte(*details), &d); err != nil {
		return fmt.Errorf("invalid -details: %w", err)
	}
	reporter, err := sdk.NewStateReporterFromEnv()
	if err != nil {
		return err
	}
	return reporter.Report(ctx, *agent, *state, d)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
