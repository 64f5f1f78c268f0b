package main

import (
	"context"
	"fmt"
	"log"
	"matchchat/backend/internal/api/handler"
	"matchchat/backend/internal/app"
	"matchchat/backend/internal/config"
	"matchchat/backend/internal/logger"
	"matchchat/backend/internal/models"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const usage = `Usage: admin <command> [args]

Commands:
  block <telegram_id>
  unblock <telegram_id>
  resolve <complaint_id> confirmed|rejected
  cleanup chats|matches|complaints
  archive <chat_id>
  archive-url <archive_key> [ttl]
  archive-remove <archive_key>
  token <telegram_id>`

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	command, args := os.Args[1], os.Args[2:]
	if command == "token" {
		requireArgs(args, 1, "admin token <telegram_id>")
		token, err := handler.NewAuth(cfg.JWT).Issue(args[0])
		if err != nil {
			log.Fatalf("Error issuing token: %v", err)
		}
		fmt.Println(token)
		return
	}

	zl, err := logger.New(cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := app.Setup(ctx, cfg, zl)
	if err != nil {
		log.Fatalf("Failed to set up dependencies: %v", err)
	}
	defer deps.Close()

	if err := run(ctx, deps, command, args); err != nil {
		deps.Close()
		log.Fatalf("Error: %v", err)
	}
}

func run(ctx context.Context, deps *app.Dependencies, command string, args []string) error {
	switch command {
	case "block", "unblock":
		requireArgs(args, 1, fmt.Sprintf("admin %s <telegram_id>", command))
		status := models.UserBlocked
		if command == "unblock" {
			status = models.UserActive
		}
		if err := deps.SQL.SetUserStatus(ctx, args[0], status); err != nil {
			return err
		}
		fmt.Printf("User %s is now %s.\n", args[0], status)
	case "resolve":
		requireArgs(args, 2, "admin resolve <complaint_id> confirmed|rejected")
		c, err := deps.Complaints.Resolve(ctx, args[0], models.ComplaintStatus(args[1]))
		if err != nil {
			return err
		}
		fmt.Printf("Complaint %s is now %s.\n", c.ComplaintID, c.Status)
	case "cleanup":
		requireArgs(args, 1, "admin cleanup chats|matches|complaints")
		job, ok := deps.Jobs()[args[0]]
		if !ok {
			fmt.Printf("Unknown job %q\n", args[0])
			os.Exit(1)
		}
		ran, report, err := deps.Runner.RunGuarded(ctx, job)
		if err != nil {
			return err
		}
		if !ran {
			fmt.Printf("Job %s is running elsewhere, skipped.\n", job.Name())
			return nil
		}
		fmt.Printf("Job %s done: %d processed, %d failed.\n", job.Name(), report.Processed, report.Failed)
	case "archive":
		requireArgs(args, 1, "admin archive <chat_id>")
		key, archived, err := deps.Archiver.Archive(ctx, args[0])
		if err != nil {
			return err
		}
		if !archived {
			fmt.Printf("Chat %s has no messages, nothing archived.\n", args[0])
			return nil
		}
		fmt.Printf("Chat %s archived to %s.\n", args[0], key)
	case "archive-url":
		if len(args) != 1 && len(args) != 2 {
			fmt.Println("Usage: admin archive-url <archive_key> [ttl]")
			os.Exit(1)
		}
		ttl := 15 * time.Minute
		if len(args) == 2 {
			d, err := time.ParseDuration(args[1])
			if err != nil {
				fmt.Println("Invalid ttl. Use a duration such as 30m or 2h.")
				os.Exit(1)
			}
			ttl = d
		}
		url, err := deps.Archiver.DownloadURL(ctx, args[0], ttl)
		if err != nil {
			return err
		}
		fmt.Println(url)
	case "archive-remove":
		requireArgs(args, 1, "admin archive-remove <archive_key>")
		if err := deps.Archiver.Remove(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Archive %s removed.\n", args[0])
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
	return nil
}

func requireArgs(args []string, n int, help string) {
	if len(args) != n {
		fmt.Println("Usage: " + help)
		os.Exit(1)
	}
}
