package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"
	"github.com/threefoldtech/vaultbridge/pkg/events"
)

// eventParser follows the events a bridge publishes on nats and logs them decoded
func main() {
	var (
		url    string
		prefix string
	)
	flag.StringVar(&url, "nats", nats.DefaultURL, "nats server url")
	flag.StringVar(&prefix, "prefix", "bridge", "subject prefix the bridge publishes under")
	flag.Parse()

	conn, err := events.ConnectNATS(url)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect")
	}
	defer conn.Close()

	subject := events.SubjectFor(prefix, ">")
	sub, err := conn.Subscribe(subject, handle)
	if err != nil {
		log.Fatal().Err(err).Str("subject", subject).Msg("failed to subscribe")
	}
	defer sub.Unsubscribe()
	log.Info().Str("subject", subject).Msg("listening for bridge events")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
}

func handle(msg *nats.Msg) {
	event, err := events.Decode(msg.Subject, msg.Data)
	if err != nil {
		log.Err(err).Str("subject", msg.Subject).Msg("failed to decode event")
		return
	}

	id := msg.Header.Get(nats.MsgIdHdr)
	switch e := event.(type) {
	case events.LockEvent:
		log.Info().Str("id", id).Str("tx", e.TransactionID.Hex()).Str("user", e.User).Uint64("amount", e.Amount).Uint64("fee", e.Fee).Uint64("destination", e.DestinationChain).Msg("found lock event")
	case events.UnlockEvent:
		log.Info().Str("id", id).Str("tx", e.TxHash.Hex()).Str("recipient", e.Recipient).Uint64("amount", e.UnlockAmount).Uint64("fee", e.BridgeFee).Msg("found unlock event")
	case events.EmergencyLockEvent:
		log.Warn().Str("id", id).Str("tx", e.TransactionID.Hex()).Str("admin", e.Admin).Uint64("amount", e.Amount).Msg("found emergency lock event")
	case events.StatusEvent:
		log.Info().Str("id", id).Str("tx", e.TxHash.Hex()).Str("from", e.From.String()).Str("to", e.To.String()).Uint64("refunded", e.Refunded).Msg("found status event")
	default:
		log.Warn().Str("subject", msg.Subject).Msg("unhandled event")
	}
}
