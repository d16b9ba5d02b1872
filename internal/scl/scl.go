// Package scl reads and writes the minimal IEC 61850-6 SCL subset an SV
// publisher needs: one IED with a sampled-value control block and the
// Communication section carrying its multicast address. It stays off the
// real-time path.
package scl

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Alailton-jr/iec61850-sv-comtrade/internal/eth"
)

var (
	ErrParse      = errors.New("scl: malformed SCL document")
	ErrNoControl  = errors.New("scl: no sampled-value control found")
	ErrBadAddress = errors.New("scl: malformed SMV address")
)

// Publisher describes one SV control block together with its resolved
// multicast address.
type Publisher struct {
	IEDName string
	LDevice string
	CBName  string
	DataSet string
	SVID    string

	MAC          eth.MAC
	AppID        uint16
	VLANID       uint16
	VLANPriority uint8

	SmpRate   uint16
	NoASDU    int
	ConfRev   uint32
	SmpMod    string
	Multicast bool
}

// DefaultPublisher mirrors the shipped generator defaults: 80 samples per
// cycle, one ASDU per frame, the 9-2LE multicast range.
func DefaultPublisher() Publisher {
	mac, _ := eth.ParseMAC("01:0C:CD:04:00:01")
	return Publisher{
		IEDName:   "SV_Publisher",
		LDevice:   "LD_SV",
		CBName:    "MSVCB1",
		DataSet:   "PhsCurrs",
		SVID:      "SV_Phasors_1",
		MAC:       mac,
		AppID:     0x4000,
		SmpRate:   80,
		NoASDU:    1,
		ConfRev:   1,
		SmpMod:    "SmpPerPeriod",
		Multicast: true,
	}
}

type document struct {
	XMLName  xml.Name `xml:"SCL"`
	Xmlns    string   `xml:"xmlns,attr"`
	Version  string   `xml:"version,attr"`
	Revision string   `xml:"revision,attr"`

	Header        header         `xml:"Header"`
	IEDs          []ied          `xml:"IED"`
	Communication *communication `xml:"Communication"`
}

type header struct {
	ID            string `xml:"id,attr"`
	Version       string `xml:"version,attr"`
	Revision      string `xml:"revision,attr"`
	ToolID        string `xml:"toolID,attr"`
	NameStructure string `xml:"nameStructure,attr"`
}

type ied struct {
	Name         string        `xml:"name,attr"`
	Manufacturer string        `xml:"manufacturer,attr,omitempty"`
	AccessPoints []accessPoint `xml:"AccessPoint"`
}

type accessPoint struct {
	Name   string  `xml:"name,attr"`
	Server *server `xml:"Server"`
}

type server struct {
	Authentication *struct{} `xml:"Authentication"`
	LDevices       []lDevice `xml:"LDevice"`
}

type lDevice struct {
	Inst string `xml:"inst,attr"`
	Desc string `xml:"desc,attr,omitempty"`
	LN0  *ln0   `xml:"LN0"`
	LNs  []ln   `xml:"LN"`
}

type ln0 struct {
	LnClass    string          `xml:"lnClass,attr"`
	Inst       string          `xml:"inst,attr"`
	LnType     string          `xml:"lnType,attr,omitempty"`
	DataSets   []dataSet       `xml:"DataSet"`
	SVControls []svControlNode `xml:"SampledValueControl"`
}

type ln struct {
	LnClass string `xml:"lnClass,attr"`
	Inst    string `xml:"inst,attr"`
	LnType  string `xml:"lnType,attr,omitempty"`
	Desc    string `xml:"desc,attr,omitempty"`
}

type dataSet struct {
	Name  string `xml:"name,attr"`
	Desc  string `xml:"desc,attr,omitempty"`
	FCDAs []fcda `xml:"FCDA"`
}

type fcda struct {
	LdInst  string `xml:"ldInst,attr"`
	LnClass string `xml:"lnClass,attr"`
	LnInst  string `xml:"lnInst,attr"`
	DoName  string `xml:"doName,attr"`
	DaName  string `xml:"daName,attr"`
	FC      string `xml:"fc,attr"`
}

type svControlNode struct {
	Name      string `xml:"name,attr"`
	DatSet    string `xml:"datSet,attr"`
	SVID      string `xml:"svID,attr"`
	Multicast string `xml:"multicast,attr,omitempty"`
	SmpMod    string `xml:"smpMod,attr,omitempty"`
	SmpRate   string `xml:"smpRate,attr,omitempty"`
	NoASDU    string `xml:"noASDU,attr,omitempty"`
	ConfRev   string `xml:"confRev,attr,omitempty"`
}

type communication struct {
	SubNetworks []subNetwork `xml:"SubNetwork"`
}

type subNetwork struct {
	Name         string        `xml:"name,attr"`
	Type         string        `xml:"type,attr,omitempty"`
	Desc         string        `xml:"desc,attr,omitempty"`
	ConnectedAPs []connectedAP `xml:"ConnectedAP"`
}

type connectedAP struct {
	IEDName string `xml:"iedName,attr"`
	APName  string `xml:"apName,attr"`
	SMVs    []smv  `xml:"SMV"`
}

type smv struct {
	LdInst  string  `xml:"ldInst,attr"`
	CBName  string  `xml:"cbName,attr"`
	SVID    string  `xml:"svID,attr,omitempty"`
	Address address `xml:"Address"`
}

type address struct {
	Ps []pValue `xml:"P"`
}

type pValue struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

func (a address) value(pType string) string {
	for _, p := range a.Ps {
		if p.Type == pType {
			return strings.TrimSpace(p.Value)
		}
	}
	return ""
}

// Marshal renders one publisher into a complete SCL document: the IED with
// its dataset of eight 9-2LE channels, the matching logical nodes and the
// Communication section. MAC bytes are dash-separated, APPID is four
// upper-case hex digits, VLAN-ID is hex and VLAN-PRIORITY decimal.
func Marshal(p Publisher) ([]byte, error) {
	fcdas := make([]fcda, 0, 8)
	for i := 1; i <= 4; i++ {
		fcdas = append(fcdas, fcda{
			LdInst: p.LDevice, LnClass: "TCTR", LnInst: strconv.Itoa(i),
			DoName: "AmpSv", DaName: "instMag.i", FC: "MX",
		})
	}
	for i := 1; i <= 4; i++ {
		fcdas = append(fcdas, fcda{
			LdInst: p.LDevice, LnClass: "TVTR", LnInst: strconv.Itoa(i),
			DoName: "VolSv", DaName: "instMag.i", FC: "MX",
		})
	}
	lns := make([]ln, 0, 8)
	for i := 1; i <= 4; i++ {
		lns = append(lns, ln{LnClass: "TCTR", Inst: strconv.Itoa(i), LnType: "TCTR_Type"})
	}
	for i := 1; i <= 4; i++ {
		lns = append(lns, ln{LnClass: "TVTR", Inst: strconv.Itoa(i), LnType: "TVTR_Type"})
	}

	doc := document{
		Xmlns:    "http://www.iec.ch/61850/2003/SCL",
		Version:  "2007",
		Revision: "B",
		Header: header{
			ID: "SV_Generated_System", Version: "1", Revision: "0",
			ToolID: "svharness", NameStructure: "IEDName",
		},
		IEDs: []ied{{
			Name:         p.IEDName,
			Manufacturer: "svharness",
			AccessPoints: []accessPoint{{
				Name: "AP1",
				Server: &server{
					Authentication: &struct{}{},
					LDevices: []lDevice{{
						Inst: p.LDevice,
						Desc: "Sampled Values Logical Device",
						LN0: &ln0{
							LnClass:  "LLN0",
							LnType:   "LLN0_Type",
							DataSets: []dataSet{{Name: p.DataSet, FCDAs: fcdas}},
							SVControls: []svControlNode{{
								Name:      p.CBName,
								DatSet:    p.DataSet,
								SVID:      p.SVID,
								Multicast: strconv.FormatBool(p.Multicast),
								SmpMod:    p.SmpMod,
								SmpRate:   strconv.Itoa(int(p.SmpRate)),
								NoASDU:    strconv.Itoa(p.NoASDU),
								ConfRev:   strconv.FormatUint(uint64(p.ConfRev), 10),
							}},
						},
						LNs: lns,
					}},
				},
			}},
		}},
		Communication: &communication{
			SubNetworks: []subNetwork{{
				Name: "ProcessBus",
				Type: "8-MMS",
				ConnectedAPs: []connectedAP{{
					IEDName: p.IEDName,
					APName:  "AP1",
					SMVs: []smv{{
						LdInst: p.LDevice,
						CBName: p.CBName,
						SVID:   p.SVID,
						Address: address{Ps: []pValue{
							{Type: "MAC-Address", Value: dashMAC(p.MAC)},
							{Type: "APPID", Value: fmt.Sprintf("%04X", p.AppID)},
							{Type: "VLAN-ID", Value: fmt.Sprintf("%03X", p.VLANID)},
							{Type: "VLAN-PRIORITY", Value: strconv.Itoa(int(p.VLANPriority))},
						}},
					}},
				}},
			}},
		},
	}
	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}

// WriteFile marshals p and writes the document to path.
func WriteFile(path string, p Publisher) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Parse extracts every sampled-value control block from an SCL document,
// joined with its Communication-section address when one is declared.
func Parse(data []byte) ([]Publisher, error) {
	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	var pubs []Publisher
	for _, ie := range doc.IEDs {
		for _, ap := range ie.AccessPoints {
			if ap.Server == nil {
				continue
			}
			for _, ld := range ap.Server.LDevices {
				if ld.LN0 == nil {
					continue
				}
				for _, svc := range ld.LN0.SVControls {
					if svc.Name == "" || svc.SVID == "" {
						continue
					}
					p := Publisher{
						IEDName:   ie.Name,
						LDevice:   ld.Inst,
						CBName:    svc.Name,
						DataSet:   svc.DatSet,
						SVID:      svc.SVID,
						SmpMod:    svc.SmpMod,
						Multicast: svc.Multicast == "true" || svc.Multicast == "1",
					}
					if svc.SmpRate != "" {
						if v, err := strconv.Atoi(svc.SmpRate); err == nil {
							p.SmpRate = uint16(v)
						}
					}
					if svc.NoASDU != "" {
						if v, err := strconv.Atoi(svc.NoASDU); err == nil {
							p.NoASDU = v
						}
					}
					if svc.ConfRev != "" {
						if v, err := strconv.ParseUint(svc.ConfRev, 10, 32); err == nil {
							p.ConfRev = uint32(v)
						}
					}
					pubs = append(pubs, p)
				}
			}
		}
	}
	if len(pubs) == 0 {
		return nil, ErrNoControl
	}

	if doc.Communication != nil {
		for _, sn := range doc.Communication.SubNetworks {
			for _, cap := range sn.ConnectedAPs {
				for _, s := range cap.SMVs {
					p := matchPublisher(pubs, s)
					if p == nil {
						continue
					}
					if err := applyAddress(p, s.Address); err != nil {
						return nil, err
					}
				}
			}
		}
	}
	return pubs, nil
}

// ParseFile reads and parses one SCL document.
func ParseFile(path string) ([]Publisher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// FindBySVID returns the publisher carrying svID.
func FindBySVID(pubs []Publisher, svID string) (*Publisher, bool) {
	for i := range pubs {
		if pubs[i].SVID == svID {
			return &pubs[i], true
		}
	}
	return nil, false
}

func matchPublisher(pubs []Publisher, s smv) *Publisher {
	for i := range pubs {
		if s.SVID != "" && pubs[i].SVID == s.SVID {
			return &pubs[i]
		}
		if s.SVID == "" && pubs[i].CBName == s.CBName {
			return &pubs[i]
		}
	}
	return nil
}

func applyAddress(p *Publisher, a address) error {
	if v := a.value("MAC-Address"); v != "" {
		mac, err := eth.ParseMAC(v)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadAddress, err)
		}
		p.MAC = mac
	}
	if v := a.value("APPID"); v != "" {
		v = strings.TrimPrefix(strings.TrimPrefix(v, "0x"), "0X")
		id, err := strconv.ParseUint(v, 16, 16)
		if err != nil {
			return fmt.Errorf("%w: APPID %q", ErrBadAddress, v)
		}
		p.AppID = uint16(id)
	}
	if v := a.value("VLAN-ID"); v != "" {
		id, err := strconv.ParseUint(v, 16, 12)
		if err != nil {
			return fmt.Errorf("%w: VLAN-ID %q", ErrBadAddress, v)
		}
		p.VLANID = uint16(id)
	}
	if v := a.value("VLAN-PRIORITY"); v != "" {
		prio, err := strconv.ParseUint(v, 10, 3)
		if err != nil {
			return fmt.Errorf("%w: VLAN-PRIORITY %q", ErrBadAddress, v)
		}
		p.VLANPriority = uint8(prio)
	}
	return nil
}

// dashMAC renders the address the way SCL documents carry it.
func dashMAC(mac eth.MAC) string {
	return strings.ReplaceAll(mac.String(), ":", "-")
}
