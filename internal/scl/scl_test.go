package scl

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMarshalParseRoundTrip(t *testing.T) {
	p := DefaultPublisher()
	p.VLANID = 4
	p.VLANPriority = 4
	data, err := Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	pubs, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(pubs) != 1 {
		t.Fatalf("got %d publishers", len(pubs))
	}
	got := pubs[0]
	if got.IEDName != p.IEDName || got.CBName != p.CBName || got.SVID != p.SVID ||
		got.DataSet != p.DataSet || got.LDevice != p.LDevice {
		t.Fatalf("identity fields = %+v", got)
	}
	if got.MAC != p.MAC || got.AppID != p.AppID || got.VLANID != 4 || got.VLANPriority != 4 {
		t.Fatalf("address fields = %+v", got)
	}
	if got.SmpRate != 80 || got.NoASDU != 1 || got.ConfRev != 1 || !got.Multicast {
		t.Fatalf("control fields = %+v", got)
	}
}

func TestMarshalAddressFormatting(t *testing.T) {
	p := DefaultPublisher()
	p.AppID = 0x4ABC
	p.VLANID = 0x123
	p.VLANPriority = 6
	data, err := Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	doc := string(data)
	for _, want := range []string{
		`<P type="MAC-Address">01-0C-CD-04-00-01</P>`,
		`<P type="APPID">4ABC</P>`,
		`<P type="VLAN-ID">123</P>`,
		`<P type="VLAN-PRIORITY">6</P>`,
	} {
		if !strings.Contains(doc, want) {
			t.Fatalf("document missing %q:\n%s", want, doc)
		}
	}
	if n := strings.Count(doc, "<FCDA "); n != 8 {
		t.Fatalf("FCDA count = %d", n)
	}
	if strings.Count(doc, `lnClass="TCTR"`) < 4 || strings.Count(doc, `lnClass="TVTR"`) < 4 {
		t.Fatalf("logical node classes missing:\n%s", doc)
	}
}

func TestParseHexPrefixedAppID(t *testing.T) {
	const doc = `<?xml version="1.0"?>
<SCL xmlns="http://www.iec.ch/61850/2003/SCL" version="2007" revision="B">
  <IED name="MU01">
    <AccessPoint name="AP1">
      <Server>
        <LDevice inst="LD1">
          <LN0 lnClass="LLN0" inst="">
            <SampledValueControl name="MSVCB1" datSet="DS" svID="MU01SV" smpRate="4800" noASDU="1" confRev="2"/>
          </LN0>
        </LDevice>
      </Server>
    </AccessPoint>
  </IED>
  <Communication>
    <SubNetwork name="PB">
      <ConnectedAP iedName="MU01" apName="AP1">
        <SMV ldInst="LD1" cbName="MSVCB1" svID="MU01SV">
          <Address>
            <P type="MAC-Address">01:0C:CD:04:00:22</P>
            <P type="APPID">0x4001</P>
            <P type="VLAN-ID">005</P>
            <P type="VLAN-PRIORITY">7</P>
          </Address>
        </SMV>
      </ConnectedAP>
    </SubNetwork>
  </Communication>
</SCL>`
	pubs, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p, ok := FindBySVID(pubs, "MU01SV")
	if !ok {
		t.Fatalf("publisher not found in %+v", pubs)
	}
	if p.AppID != 0x4001 || p.VLANID != 5 || p.VLANPriority != 7 {
		t.Fatalf("address = %+v", p)
	}
	if p.MAC.String() != "01:0C:CD:04:00:22" {
		t.Fatalf("mac = %v", p.MAC)
	}
	if p.SmpRate != 4800 || p.ConfRev != 2 {
		t.Fatalf("control = %+v", p)
	}
}

func TestParseNoControl(t *testing.T) {
	const doc = `<SCL xmlns="http://www.iec.ch/61850/2003/SCL"><Header id="x"/></SCL>`
	if _, err := Parse([]byte(doc)); !errors.Is(err, ErrNoControl) {
		t.Fatalf("err = %v", err)
	}
}

func TestParseBadAddress(t *testing.T) {
	const doc = `<SCL xmlns="http://www.iec.ch/61850/2003/SCL">
  <IED name="MU01"><AccessPoint name="AP1"><Server><LDevice inst="LD1"><LN0 lnClass="LLN0" inst="">
    <SampledValueControl name="C" datSet="DS" svID="S"/>
  </LN0></LDevice></Server></AccessPoint></IED>
  <Communication><SubNetwork name="PB"><ConnectedAP iedName="MU01" apName="AP1">
    <SMV ldInst="LD1" cbName="C" svID="S"><Address><P type="MAC-Address">nope</P></Address></SMV>
  </ConnectedAP></SubNetwork></Communication>
</SCL>`
	if _, err := Parse([]byte(doc)); !errors.Is(err, ErrBadAddress) {
		t.Fatalf("err = %v", err)
	}
}

func TestParseMalformedXML(t *testing.T) {
	if _, err := Parse([]byte("<SCL><unclosed>")); !errors.Is(err, ErrParse) {
		t.Fatalf("err = %v", err)
	}
}

func TestWriteAndParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "system.scd")
	if err := WriteFile(path, DefaultPublisher()); err != nil {
		t.Fatalf("write: %v", err)
	}
	pubs, err := ParseFile(path)
	if err != nil {
		t.Fatalf("parse file: %v", err)
	}
	if len(pubs) != 1 || pubs[0].SVID != "SV_Phasors_1" {
		t.Fatalf("pubs = %+v", pubs)
	}
	if _, err := ParseFile(filepath.Join(t.TempDir(), "absent.scd")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}
}
