// Command goosestop publishes a GOOSE control frame, typically to stop a
// sampled-value session whose stop trigger matches the gocbRef.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/common"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/eth"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/goose"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/l2"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	fs := flag.NewFlagSet("goosestop", flag.ExitOnError)
	iface := fs.String("iface", "", "network interface")
	dst := fs.String("dst", "01:0C:CD:01:00:00", "destination MAC")
	src := fs.String("src", "", "source MAC (default: interface address)")
	vlanID := fs.Int("vlan", 0, "VLAN id")
	vlanPrio := fs.Int("prio", 4, "VLAN priority")
	appID := fs.String("appid", "0x3000", "APPID (hex)")
	gocbRef := fs.String("gocb-ref", "", "GOOSE control block reference")
	datSet := fs.String("dataset", "", "dataset reference")
	ttl := fs.Uint("ttl", 2000, "timeAllowedToLive in ms")
	stNum := fs.Uint("st-num", 1, "state number")
	sqNum := fs.Uint("sq-num", 0, "sequence number")
	count := fs.Int("count", 1, "number of frames to send")
	interval := fs.Duration("interval", 100*time.Millisecond, "delay between repeated frames")
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("goosestop %s (built %s)\n", version, buildDate)
		return
	}
	if *iface == "" || *gocbRef == "" {
		fmt.Println("required: --iface and --gocb-ref")
		os.Exit(1)
	}

	dstMAC, err := eth.ParseMAC(*dst)
	if err != nil {
		common.Fatalf("dst: %v", err)
	}
	var srcMAC eth.MAC
	if *src != "" {
		srcMAC, err = eth.ParseMAC(*src)
		if err != nil {
			common.Fatalf("src: %v", err)
		}
	}
	id, err := parseHexID(*appID)
	if err != nil {
		common.Fatalf("appid: %v", err)
	}
	vlan := eth.VLAN{Priority: uint8(*vlanPrio), ID: uint16(*vlanID)}
	if err := vlan.Validate(); err != nil {
		common.Fatalf("vlan: %v", err)
	}

	handle, err := l2.Open(*iface)
	if err != nil {
		common.Fatalf("open %s: %v", *iface, err)
	}
	defer handle.Close()
	if srcMAC.IsZero() {
		srcMAC = handle.LocalMAC()
	}

	cfg := goose.EncodeConfig{
		DstMAC:            dstMAC,
		SrcMAC:            srcMAC,
		VLAN:              vlan,
		AppID:             id,
		GocbRef:           *gocbRef,
		TimeAllowedToLive: uint32(*ttl),
		DatSet:            *datSet,
		StNum:             uint32(*stNum),
		SqNum:             uint32(*sqNum),
	}
	for i := 0; i < *count; i++ {
		if i > 0 {
			time.Sleep(*interval)
			cfg.SqNum++
		}
		frame := goose.Encode(cfg)
		if _, err := handle.Send(frame); err != nil {
			common.Fatalf("send: %v", err)
		}
		common.Logf("goose sent: gocbRef=%s stNum=%d sqNum=%d dst=%s (%d bytes)",
			cfg.GocbRef, cfg.StNum, cfg.SqNum, dstMAC, len(frame))
	}
}

func parseHexID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}
