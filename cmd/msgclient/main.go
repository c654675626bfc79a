package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"bookswap/client"
)

type Config struct {
	ServerURL string
	Token     string
	UserID    int64
}

func parseFlags() Config {
	config := Config{}

	flag.StringVar(&config.ServerURL, "url", "http://localhost:8080", "Messaging service URL")
	flag.StringVar(&config.Token, "token", "", "Bearer token")
	flag.Int64Var(&config.UserID, "user", 0, "Current user ID (for sent/received tagging)")

	flag.Parse()
	return config
}

func main() {
	config := parseFlags()
	if config.UserID == 0 {
		log.Fatal("missing -user flag")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("\nReceived interrupt signal, shutting down...")
		cancel()
		os.Exit(0)
	}()

	messenger := client.NewMessenger(config.ServerURL, config.Token, config.UserID, os.Stdout)
	stdin := bufio.NewReader(os.Stdin)

	if err := messenger.LoadInbox(ctx); err != nil {
		log.Printf("inbox load failed: %v", err)
	}

	fmt.Println("commands: inbox | open <thread|#thread-N> | start <user> | send <text> | del <msg> | quit")
	for {
		fmt.Print("> ")
		line, err := stdin.ReadString('\n')
		if err != nil {
			return
		}
		cmd, arg, _ := strings.Cut(strings.TrimSpace(line), " ")

		switch cmd {
		case "inbox":
			if err := messenger.LoadInbox(ctx); err != nil {
				log.Printf("inbox load failed: %v", err)
			}
		case "open":
			if id, ok := client.ParseFragment(arg); ok {
				if err := messenger.OpenFragment(ctx, arg); err != nil {
					log.Printf("open %d failed: %v", id, err)
				}
				continue
			}
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				fmt.Println("usage: open <thread id>")
				continue
			}
			if err := messenger.OpenThread(ctx, id); err != nil {
				log.Printf("open failed: %v", err)
			}
		case "start":
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				fmt.Println("usage: start <user id>")
				continue
			}
			if err := messenger.StartConversation(ctx, id); err != nil {
				log.Printf("start failed: %v", err)
			}
		case "send":
			if err := messenger.Send(ctx, arg); err != nil {
				// Draft stays in the user's hands on failure
				log.Printf("send failed, draft kept: %v", err)
			}
		case "del":
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				fmt.Println("usage: del <message id>")
				continue
			}
			confirm := func() bool {
				fmt.Print("delete this message? [y/N] ")
				answer, _ := stdin.ReadString('\n')
				return strings.TrimSpace(answer) == "y"
			}
			if err := messenger.Delete(ctx, id, confirm); err != nil {
				log.Printf("delete failed: %v", err)
			}
		case "quit", "exit":
			return
		case "":
		default:
			fmt.Println("unknown command:", cmd)
		}
	}
}
