package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/rrapp/rentchat/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

// run connects two clients to one room, sends from the first and expects both
// to receive the broadcast.
func run() error {
	base := flag.String("addr", "ws://localhost:8080", "server base address")
	user := flag.String("user", "tester", "username to send as")
	room := flag.String("room", "general", "room name")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	url := *base + "/ws/chat/" + *room
	sender, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial sender: %w", err)
	}
	defer sender.Close(websocket.StatusNormalClosure, "done")

	listener, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial listener: %w", err)
	}
	defer listener.Close(websocket.StatusNormalClosure, "done")

	frame := proto.RoomChatFrame{Message: text, Username: user, Room: room}
	if err := wsjson.Write(ctx, sender, frame); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	for name, conn := range map[string]*websocket.Conn{"sender": sender, "listener": listener} {
		var out proto.RoomChatOut
		if err := wsjson.Read(ctx, conn, &out); err != nil {
			return fmt.Errorf("%s read: %w", name, err)
		}
		if out.Message != *text || out.Username != *user {
			return fmt.Errorf("%s got unexpected frame: %+v", name, out)
		}
		log.Printf("%s received %q from %s", name, out.Message, out.Username)
	}

	log.Printf("smoke test passed against %s", url)
	return nil
}
