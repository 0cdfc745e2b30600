package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/annel0/patch-stream/internal/eventbus"
)

// patch-events — утилита наблюдения за событиями жизненного цикла патчей
// через NATS JetStream (аналог tail -f для шины).

func main() {
	var (
		url    = flag.String("url", "nats://127.0.0.1:4222", "адрес NATS")
		stream = flag.String("stream", "PATCHES", "имя JetStream стрима")
		types  = flag.String("types", "", "фильтр типов событий (через запятую)")
		raw    = flag.Bool("raw", false, "печатать полный конверт в JSON")
	)
	flag.Parse()

	bus, err := eventbus.NewJetStreamBus(*url, *stream, 24*time.Hour)
	if err != nil {
		log.Fatalf("Не удалось подключиться к NATS: %v", err)
	}
	defer bus.Close()

	filter := eventbus.Filter{}
	if *types != "" {
		filter.Types = strings.Split(*types, ",")
	}

	_, err = bus.Subscribe(context.Background(), filter, func(ctx context.Context, ev *eventbus.Envelope) {
		if *raw {
			data, _ := json.Marshal(ev)
			fmt.Println(string(data))
			return
		}
		fmt.Printf("%s %-16s %s %s\n",
			ev.Timestamp.Format(time.RFC3339), ev.EventType, ev.Source, string(ev.Payload))
	})
	if err != nil {
		log.Fatalf("Ошибка подписки: %v", err)
	}

	fmt.Printf("Слушаем события стрима %s (%s), Ctrl+C для выхода\n", *stream, *url)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
