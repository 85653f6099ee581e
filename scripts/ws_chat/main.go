package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/rrapp/rentchat/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("addr", "ws://localhost:8080", "server base address")
	user := flag.String("user", "cli-user", "username")
	room := flag.String("room", "general", "room to join")
	to := flag.String("to", "", "receiver username; switches to direct chat")
	flag.Parse()

	direct := *to != ""
	url := *base + "/ws/chat/" + *room
	if direct {
		url = *base + "/ws/dm/" + *room
	}

	baseCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	fmt.Printf("Connected to %s as %s\n", url, *user)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	go func() {
		defer cancel()
		readLoop(ctx, conn)
	}()

	writeLoop(ctx, conn, func(text string) any {
		if direct {
			return proto.DirectChatFrame{Message: &text, SenderUsername: user, ReceiverUsername: to, Room: room}
		}
		return proto.RoomChatFrame{Message: &text, Username: user, Room: room}
	})

	stop()
	cancel()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
	return nil
}

// incoming covers every frame the server sends.
type incoming struct {
	Type             string       `json:"type"`
	Error            *proto.Error `json:"error"`
	Message          string       `json:"message"`
	Username         string       `json:"username"`
	SenderUsername   string       `json:"senderUsername"`
	ReceiverUsername string       `json:"receiverUsername"`
}

func readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var in incoming
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			// Treat expected shutdowns quietly.
			if errors.Is(err, context.Canceled) {
				return
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			log.Printf("read error: %v", err)
			return
		}

		switch {
		case in.Type == proto.OutboundTypeError && in.Error != nil:
			fmt.Printf("! %s: %s\n", in.Error.Code, in.Error.Msg)
		case in.SenderUsername != "":
			fmt.Printf("%s -> %s: %s\n", in.SenderUsername, in.ReceiverUsername, in.Message)
		default:
			fmt.Printf("%s: %s\n", in.Username, in.Message)
		}
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, frame func(text string) any) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if err := wsjson.Write(ctx, conn, frame(text)); err != nil {
				log.Printf("send error: %v", err)
				return
			}
		}
	}
}
