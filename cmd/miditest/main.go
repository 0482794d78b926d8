package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"k8s.io/utils/clock"

	"go-looper/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "list":
		listPorts()
	case "serial":
		if len(os.Args) < 3 {
			usage()
			return
		}
		baud := 0
		if len(os.Args) > 3 {
			if baud, err = strconv.Atoi(os.Args[3]); err != nil {
				fmt.Printf("bad baud rate %q\n", os.Args[3])
				os.Exit(1)
			}
		}
		err = monitorSerial(os.Args[2], baud)
	case "port":
		if len(os.Args) < 3 {
			usage()
			return
		}
		err = monitorPort(os.Args[2])
	default:
		usage()
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                 - List MIDI and serial ports")
	fmt.Println("  serial <dev> [baud]  - Print events from a serial MIDI line")
	fmt.Println("  port <name>          - Print events from a MIDI input port")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}

	fmt.Println("\n=== Serial Ports ===")
	ports, err := midi.SerialPorts()
	if err != nil {
		fmt.Printf("  error: %v\n", err)
		return
	}
	for i, p := range ports {
		fmt.Printf("  %d: %s\n", i, p)
	}
}

func monitorSerial(name string, baud int) error {
	port, err := midi.OpenSerial(name, baud)
	if err != nil {
		return err
	}
	defer port.Close()
	return monitor(port, port.Name())
}

func monitorPort(name string) error {
	r, err := midi.OpenPort(name)
	if err != nil {
		return err
	}
	defer r.Close()
	return monitor(r, r.Name())
}

// monitor prints every event from src until interrupted
func monitor(src midi.ByteSource, name string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s := midi.NewSource(src, clock.RealClock{})
	fmt.Printf("Listening on %s at %.0f bpm, %d ticks per beat (ctrl+c to stop)\n", name, s.Tempo(), s.Timebase())
	fmt.Printf("%8s %6s  %-12s %s\n", "tick", "delta", "bytes", "message")

	for {
		e, err := s.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fmt.Printf("%8d %+6d  % -12X %s\n", e.Absolute, e.Delta, []byte(e.Message), e.Message.String())
	}
}
