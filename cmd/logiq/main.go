// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/suchitkumarchennuri/logiq"
	"github.com/suchitkumarchennuri/logiq/config"
	"github.com/suchitkumarchennuri/logiq/core"
)

func main() {
	app := &cli.App{
		Name:  "logiq",
		Usage: "Retrieval-augmented search over application logs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest NDJSON log payloads from a file or stdin",
				ArgsUsage: "[file]",
				Action:    ingestCommand,
			},
			{
				Name:      "query",
				Usage:     "Ask a question about the ingested logs",
				ArgsUsage: "<question>",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "service",
						Usage: "Only consider logs from this service",
					},
					&cli.StringFlag{
						Name:  "level",
						Usage: "Only consider logs at this level",
					},
					&cli.TimestampFlag{
						Name:   "since",
						Usage:  "Only consider logs created at or after this time",
						Layout: time.RFC3339,
					},
					&cli.TimestampFlag{
						Name:   "until",
						Usage:  "Only consider logs created at or before this time",
						Layout: time.RFC3339,
					},
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"k"},
						Usage:   "Number of log records to retrieve (0 uses the configured default)",
					},
					&cli.BoolFlag{
						Name:  "show-context",
						Usage: "Print the retrieved log records alongside the answer",
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// payloadJSON is the NDJSON wire form of a log payload.
type payloadJSON struct {
	Service   string         `json:"service"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func ingestCommand(c *cli.Context) error {
	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	input := io.Reader(os.Stdin)
	if c.Args().Len() > 0 {
		file, err := os.Open(c.Args().First())
		if err != nil {
			return err
		}
		defer file.Close()
		input = file
	}

	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	var line, ingested, failed int
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		var raw payloadJSON
		if err := json.Unmarshal([]byte(text), &raw); err != nil {
			slog.Warn("skipping malformed line", "line", line, "err", err)
			failed++
			continue
		}

		payload := core.LogPayload{
			Service:  raw.Service,
			Level:    raw.Level,
			Message:  raw.Message,
			Metadata: raw.Metadata,
		}
		if raw.Timestamp != "" {
			timestamp, err := time.Parse(time.RFC3339, raw.Timestamp)
			if err != nil {
				slog.Warn("skipping line with bad timestamp", "line", line, "err", err)
				failed++
				continue
			}
			payload.Timestamp = timestamp
		}

		if _, err := db.IngestSync(c.Context, payload); err != nil {
			slog.Error("failed to ingest payload", "line", line, "err", err)
			failed++
			continue
		}
		ingested++
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	fmt.Printf("Ingested %d log records (%d failed)\n", ingested, failed)
	return nil
}

func queryCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	db, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	filter := core.QueryFilter{
		Service: c.String("service"),
		Level:   strings.ToUpper(c.String("level")),
		Limit:   c.Int("limit"),
	}
	if since := c.Timestamp("since"); since != nil {
		filter.Start = *since
	}
	if until := c.Timestamp("until"); until != nil {
		filter.End = *until
	}

	response, err := db.Answer(c.Context, question, filter)
	if err != nil {
		return err
	}

	fmt.Println(response.Answer)

	if c.Bool("show-context") && len(response.Contexts) > 0 {
		fmt.Printf("\nContext (%d of %d requested):\n", response.UsedK, response.RequestedK)
		for _, scored := range response.Contexts {
			record := scored.Record
			fmt.Printf("  [%s] %s %s: %s (distance %.4f)\n",
				record.Timestamp.Format(time.RFC3339),
				record.Service, record.Level, record.Message, scored.Distance)
		}
	}
	return nil
}

func openDatabase() (*logiq.Database, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return logiq.Open(cfg)
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
