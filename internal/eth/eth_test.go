package eth

import (
	"bytes"
	"errors"
	"testing"
)

func TestParseMAC(t *testing.T) {
	cases := []struct {
		in   string
		want MAC
		ok   bool
	}{
		{"01:0C:CD:01:00:00", MAC{0x01, 0x0C, 0xCD, 0x01, 0x00, 0x00}, true},
		{"01-0C-CD-04-00-01", MAC{0x01, 0x0C, 0xCD, 0x04, 0x00, 0x01}, true},
		{"aa:bb:cc:dd:ee:ff", MAC{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}, true},
		{"01:0C:CD:01:00", MAC{}, false},
		{"01:0C:CD:01:00:00:11", MAC{}, false},
		{"01:0C:CD:01:00:GG", MAC{}, false},
		{"010CCD010000", MAC{}, false},
		{"", MAC{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMAC(tc.in)
			if tc.ok {
				if err != nil {
					t.Fatalf("ParseMAC(%q): %v", tc.in, err)
				}
				if got != tc.want {
					t.Fatalf("ParseMAC(%q) = %v, want %v", tc.in, got, tc.want)
				}
			} else {
				if err == nil {
					t.Fatalf("ParseMAC(%q): expected error", tc.in)
				}
				if !errors.Is(err, ErrBadMAC) {
					t.Fatalf("ParseMAC(%q): error %v not ErrBadMAC", tc.in, err)
				}
			}
		})
	}
}

func TestMACString(t *testing.T) {
	m := MAC{0x01, 0x0C, 0xCD, 0x01, 0x00, 0xFF}
	if got := m.String(); got != "01:0C:CD:01:00:FF" {
		t.Fatalf("String() = %q", got)
	}
}

func TestMACIsZero(t *testing.T) {
	if !(MAC{}).IsZero() {
		t.Fatal("zero MAC not reported zero")
	}
	if (MAC{0, 0, 0, 0, 0, 1}).IsZero() {
		t.Fatal("non-zero MAC reported zero")
	}
}

func TestVLANTCI(t *testing.T) {
	cases := []struct {
		vlan VLAN
		want uint16
	}{
		{VLAN{Priority: 4, ID: 4}, 0x8004},
		{VLAN{Priority: 0, ID: 0}, 0x0000},
		{VLAN{Priority: 7, ID: 4095}, 0xEFFF},
		{VLAN{Priority: 1, ID: 0x100}, 0x2100},
	}
	for _, tc := range cases {
		if got := tc.vlan.TCI(); got != tc.want {
			t.Fatalf("TCI(%+v) = 0x%04X, want 0x%04X", tc.vlan, got, tc.want)
		}
	}
}

func TestVLANValidate(t *testing.T) {
	if err := (VLAN{Priority: 7, ID: 4095}).Validate(); err != nil {
		t.Fatalf("valid VLAN rejected: %v", err)
	}
	if err := (VLAN{Priority: 8}).Validate(); !errors.Is(err, ErrBadVLAN) {
		t.Fatalf("priority 8 accepted: %v", err)
	}
	if err := (VLAN{ID: 4096}).Validate(); !errors.Is(err, ErrBadVLAN) {
		t.Fatalf("id 4096 accepted: %v", err)
	}
}

func TestPrefixTagged(t *testing.T) {
	dst := MAC{0x01, 0x0C, 0xCD, 0x01, 0x00, 0x00}
	src := MAC{0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	got := Prefix(dst, src, VLAN{Priority: 4, ID: 4})
	want := []byte{
		0x01, 0x0C, 0xCD, 0x01, 0x00, 0x00,
		0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
		0x81, 0x00, 0x80, 0x04,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Prefix = % X, want % X", got, want)
	}
}

func TestPrefixUntagged(t *testing.T) {
	dst := MAC{0x01, 0x0C, 0xCD, 0x01, 0x00, 0x00}
	src := MAC{0x02, 0x03, 0x04, 0x05, 0x06, 0x07}
	got := Prefix(dst, src, VLAN{})
	want := []byte{
		0x01, 0x0C, 0xCD, 0x01, 0x00, 0x00,
		0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Prefix = % X, want % X", got, want)
	}
}

func TestPrefixTagInsertedForEitherField(t *testing.T) {
	dst := MAC{1, 2, 3, 4, 5, 6}
	src := MAC{7, 8, 9, 10, 11, 12}
	if got := Prefix(dst, src, VLAN{Priority: 4}); len(got) != 16 {
		t.Fatalf("priority-only tag: len %d, want 16", len(got))
	}
	if got := Prefix(dst, src, VLAN{ID: 4}); len(got) != 16 {
		t.Fatalf("id-only tag: len %d, want 16", len(got))
	}
}

func TestClassify(t *testing.T) {
	base := []byte{
		0x01, 0x0C, 0xCD, 0x01, 0x00, 0x00,
		0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
	}
	untagged := append(append([]byte{}, base...), 0x88, 0xBA, 0xAA, 0xBB)
	et, off, err := Classify(untagged)
	if err != nil {
		t.Fatalf("Classify untagged: %v", err)
	}
	if et != EtherTypeSV || off != 14 {
		t.Fatalf("untagged: et=0x%04X off=%d", et, off)
	}

	tagged := append(append([]byte{}, base...), 0x81, 0x00, 0x80, 0x04, 0x88, 0xB8, 0xCC, 0xDD)
	et, off, err = Classify(tagged)
	if err != nil {
		t.Fatalf("Classify tagged: %v", err)
	}
	if et != EtherTypeGOOSE || off != 18 {
		t.Fatalf("tagged: et=0x%04X off=%d", et, off)
	}

	if _, _, err := Classify(base[:10]); !errors.Is(err, ErrFrameTooShort) {
		t.Fatalf("short frame: %v", err)
	}
	shortTagged := append(append([]byte{}, base...), 0x81, 0x00, 0x80)
	if _, _, err := Classify(shortTagged); !errors.Is(err, ErrFrameTooShort) {
		t.Fatalf("short tagged frame: %v", err)
	}
}
