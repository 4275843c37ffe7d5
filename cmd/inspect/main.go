package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	quicbridge "github.com/quiclink/quicbridge"
	"github.com/quiclink/quicbridge/bridge"
	"github.com/quiclink/quicbridge/enginetest"
	"github.com/quiclink/quicbridge/wire"
)

func main() {
	var (
		frameFile   = flag.String("file", "", "Path to a capture of concatenated 32-byte frames")
		hexFrames   = flag.String("hex", "", "Hex-encoded frame bytes (whitespace ignored)")
		demo        = flag.Bool("demo", false, "Run the built-in demo commands against the loopback engine")
		verbose     = flag.Bool("v", false, "Enable bridge debug logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		bridge.SetLogger(logger)
	}

	switch {
	case *interactive:
		if err := runInteractive(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *demo:
		if err := runDemo(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *frameFile != "" || *hexFrames != "":
		if err := decodeFrames(*frameFile, *hexFrames); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "Usage: inspect -file <capture>        decode frames from a file")
		fmt.Fprintln(os.Stderr, "       inspect -hex <bytes>           decode frames from hex")
		fmt.Fprintln(os.Stderr, "       inspect -demo                  run demo commands end to end")
		fmt.Fprintln(os.Stderr, "       inspect -i                     interactive mode")
		os.Exit(1)
	}
}

func decodeFrames(file, hexStr string) error {
	var data []byte
	switch {
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
		data = raw
	default:
		cleaned := strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
				return -1
			}
			return r
		}, hexStr)
		raw, err := hex.DecodeString(cleaned)
		if err != nil {
			return fmt.Errorf("decode hex: %w", err)
		}
		data = raw
	}

	if len(data)%wire.Size != 0 {
		fmt.Printf("Warning: %d trailing bytes do not form a frame\n\n", len(data)%wire.Size)
	}

	count := len(data) / wire.Size
	for i := 0; i < count; i++ {
		frame := data[i*wire.Size : (i+1)*wire.Size]
		fmt.Printf("Frame %d:\n", i)
		msg, err := wire.Decode(frame)
		if err != nil {
			fmt.Printf("  undecodable: %v\n", err)
			if id, ok := wire.PeekTaskID(frame); ok {
				fmt.Printf("  header task id: %d\n", id)
			}
			continue
		}
		printMessage("  ", msg)
	}
	return nil
}

func printMessage(indent string, msg wire.Message) {
	fmt.Printf("%stask:    %d", indent, msg.TaskID)
	if msg.TaskID == wire.SentinelTaskID {
		fmt.Printf(" (sentinel)")
	}
	fmt.Println()
	fmt.Printf("%sstatus:  %s (0x%04X)\n", indent, msg.Status, uint16(msg.Status))
	fmt.Printf("%spayload: %s\n", indent, formatPayload(msg.Payload))
}

func formatPayload(p wire.Payload) string {
	switch v := p.(type) {
	case wire.None:
		return "none"
	case wire.Bool:
		return fmt.Sprintf("bool %v", v.Value)
	case wire.U64:
		return fmt.Sprintf("u64 %d", v.Value)
	case wire.BytesRef:
		return fmt.Sprintf("bytes addr=%#x len=%d", v.Addr, v.Len)
	case wire.StringRef:
		return fmt.Sprintf("string addr=%#x len=%d", v.Addr, v.Len)
	default:
		return fmt.Sprintf("%T", p)
	}
}

func runDemo() error {
	ctx := context.Background()

	b, err := bridge.New(enginetest.New(nil))
	if err != nil {
		return fmt.Errorf("create bridge: %w", err)
	}
	defer b.Close(ctx)

	if err := b.WaitReady(ctx); err != nil {
		return fmt.Errorf("engine handshake: %w", err)
	}
	fmt.Println("Engine ready.")

	demos := []struct {
		name string
		cmd  quicbridge.Command
		data []byte
	}{
		{"echo", enginetest.CmdEcho, nil},
		{"compute", enginetest.CmdCompute, nil},
		{"noop", enginetest.CmdNoop, nil},
		{"reverse", enginetest.CmdReverse, []byte("hello, bridge")},
	}

	for _, d := range demos {
		res, err := submitAndWait(ctx, b, d.cmd, d.data)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		fmt.Printf("\n%s:\n", d.name)
		fmt.Print(res)
	}
	return nil
}

// submitAndWait runs one command through the channel-multiplexed path and
// renders the outcome, collecting byte results from the engine heap.
func submitAndWait(ctx context.Context, b *bridge.Bridge, cmd quicbridge.Command, data []byte) (string, error) {
	p, err := b.Submit(ctx, cmd, data)
	if err != nil {
		return "", err
	}
	res, err := p.Await(ctx)
	if err != nil {
		return "", err
	}
	if res.Err != nil {
		return fmt.Sprintf("  failed: %v\n", res.Err), nil
	}

	var out strings.Builder
	fmt.Fprintf(&out, "  task:   %d\n", res.Msg.TaskID)
	fmt.Fprintf(&out, "  status: %s\n", res.Msg.Status)
	if addr, length, ok := res.Bytes(); ok {
		view := b.WrapBuffer(addr, uint32(length))
		payload, err := view.View()
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&out, "  bytes:  %q\n", payload)
		view.Destroy()
		return out.String(), nil
	}
	fmt.Fprintf(&out, "  result: %s\n", formatPayload(res.Msg.Payload))
	return out.String(), nil
}
