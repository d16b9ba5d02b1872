package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/common"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/eth"
	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/scl"
)

func scdCmd(args []string) {
	fs := flag.NewFlagSet("scd", flag.ExitOnError)
	out := fs.String("out", "", "output SCD path")
	iedName := fs.String("ied", "", "IED name")
	cbName := fs.String("cb", "", "control block name")
	svID := fs.String("sv-id", "", "svID string")
	dataSet := fs.String("dataset", "", "dataset name")
	mac := fs.String("mac", "", "destination MAC")
	appID := fs.String("appid", "", "APPID (hex)")
	vlanID := fs.Int("vlan", 0, "VLAN id")
	vlanPrio := fs.Int("prio", 0, "VLAN priority")
	smpRate := fs.Int("smp-rate", 0, "samples per period")
	confRev := fs.Int("conf-rev", 0, "configuration revision")
	fs.Parse(args)

	if *out == "" {
		fmt.Println("required: --out")
		os.Exit(1)
	}

	pub := scl.DefaultPublisher()
	if *iedName != "" {
		pub.IEDName = *iedName
	}
	if *cbName != "" {
		pub.CBName = *cbName
	}
	if *svID != "" {
		pub.SVID = *svID
	}
	if *dataSet != "" {
		pub.DataSet = *dataSet
	}
	if *mac != "" {
		m, err := eth.ParseMAC(*mac)
		if err != nil {
			common.Fatalf("mac: %v", err)
		}
		pub.MAC = m
	}
	if *appID != "" {
		id, err := parseHexID(*appID)
		if err != nil {
			common.Fatalf("appid: %v", err)
		}
		pub.AppID = id
	}
	if *vlanID > 0 {
		pub.VLANID = uint16(*vlanID)
	}
	if *vlanPrio > 0 {
		pub.VLANPriority = uint8(*vlanPrio)
	}
	if *smpRate > 0 {
		pub.SmpRate = uint16(*smpRate)
	}
	if *confRev > 0 {
		pub.ConfRev = uint32(*confRev)
	}

	if err := scl.WriteFile(*out, pub); err != nil {
		common.Fatalf("write scd: %v", err)
	}
	fmt.Printf("SCD written to %s (svID %s, %s)\n", *out, pub.SVID, pub.MAC)
}
