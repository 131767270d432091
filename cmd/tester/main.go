// Command tester connects a batch of live clients to a running server, joins
// them to one room and reports what each one received.
package main

import (
	"collab-live/client"
	"collab-live/domain"
	"collab-live/domain/event"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/sync/errgroup"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	ServerURL string        `envconfig:"TESTER_SERVER_URL" default:"ws://localhost:8080/ws"`
	Room      string        `envconfig:"TESTER_ROOM" required:"true"`
	Clients   int           `envconfig:"TESTER_CLIENTS" default:"5"`
	Duration  time.Duration `envconfig:"TESTER_DURATION" default:"30s"`
	LogLevel  string        `envconfig:"LOG_LEVEL" default:"INFO"`
	// TESTER_COLOURS enables colorized output for better readability
	Colours bool `envconfig:"TESTER_COLOURS" default:"true"`
}

var reported = []event.Type{
	event.PresenceType, event.TaskAddedType, event.TaskUpdatedType, event.MessageReceivedType,
	event.FileUploadedType, event.FileDeletedType, event.TeamMemberAddedType, event.TeamMemberRemovedType,
	event.DirectMessageType, event.ErrorType,
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Tester terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	if !config.Colours {
		color.Disable()
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, config.Duration)
	defer cancel()

	room := domain.RoomID(config.Room)
	clients := make([]*client.Client, 0, config.Clients)
	defer func() {
		for _, c := range clients {
			c.Close()
		}
	}()

	header(fmt.Sprintf("Connecting %d client(s) to %s", config.Clients, config.ServerURL))
	for i := range config.Clients {
		endpoint, err := client.Endpoint(config.ServerURL, "tester-"+strconv.Itoa(i))
		if err != nil {
			return exitConfig, err
		}
		c, err := client.Dial(ctx, endpoint, log.With("client", i))
		if err != nil {
			return exitRuntime, err
		}
		if err := c.Join(ctx, room); err != nil {
			return exitRuntime, err
		}
		clients = append(clients, c)
	}

	header(fmt.Sprintf("Listening on room %s for %s (Ctrl+C to stop early)", room, config.Duration))
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range clients {
		g.Go(func() error { return c.Run(gctx) })
	}
	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return exitRuntime, err
	}

	report(clients, room)
	return exitOK, nil
}

func header(s string) {
	fmt.Println(color.New(color.BgBlack, color.FgGreen).Render("  ====== " + s + " ======"))
}

func report(clients []*client.Client, room domain.RoomID) {
	table := tablewriter.NewWriter(os.Stdout)
	columns := []string{"Client", "Joined", "Tasks"}
	for _, t := range reported {
		columns = append(columns, string(t))
	}
	table.SetHeader(columns)
	table.SetBorder(false)

	for i, c := range clients {
		row := []string{
			strconv.Itoa(i),
			strconv.FormatBool(c.Joined(room)),
			strconv.Itoa(len(c.View(room).Tasks())),
		}
		for _, t := range reported {
			row = append(row, strconv.Itoa(c.Received(t)))
		}
		table.Append(row)
	}
	table.Render()
}
