package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/net/html/charset"
)

// Document holds the parts of an Arkoon configuration export the exporter
// reads: the object lists and the rule list.
type Document struct {
	Hosts      []Object `xml:"ListHost>Host"`
	Networks   []Object `xml:"ListNetwork>Network"`
	Appliances []Object `xml:"ListFast360>Fast360"`
	Clusters   []Object `xml:"ListCluster>Cluster"`

	SystemTCP   []Object `xml:"ListServiceSystemTcp>ServiceSystemTcp"`
	SystemUDP   []Object `xml:"ListServiceSystemUdp>ServiceSystemUdp"`
	SystemICMP  []Object `xml:"ListServiceSystemIcmp>ServiceSystemIcmp"`
	SystemOther []Object `xml:"ListServiceSystemOther>ServiceSystemOther"`
	UserTCP     []Object `xml:"ListServiceUserTcp>ServiceUserTcp"`
	UserUDP     []Object `xml:"ListServiceUserUdp>ServiceUserUdp"`
	UserICMP    []Object `xml:"ListServiceUserIcmp>ServiceUserIcmp"`
	UserOther   []Object `xml:"ListServiceUserOther>ServiceUserOther"`

	ServiceGroups []Object `xml:"ListGroupService>GroupService"`
	NetworkGroups []Object `xml:"ListGroupNetObject>GroupNetObject"`

	Rules []RuleElement `xml:"ListRule>Rule"`
}

// Category is one named object list of a Document.
type Category struct {
	Name    string
	Group   bool
	Objects []Object
}

// Categories returns the fourteen object lists in a fixed order.
func (d *Document) Categories() []Category {
	return []Category{
		{Name: "Host", Objects: d.Hosts},
		{Name: "Network", Objects: d.Networks},
		{Name: "Fast360", Objects: d.Appliances},
		{Name: "Cluster", Objects: d.Clusters},
		{Name: "ServiceSystemTcp", Objects: d.SystemTCP},
		{Name: "ServiceSystemUdp", Objects: d.SystemUDP},
		{Name: "ServiceSystemIcmp", Objects: d.SystemICMP},
		{Name: "ServiceSystemOther", Objects: d.SystemOther},
		{Name: "ServiceUserTcp", Objects: d.UserTCP},
		{Name: "ServiceUserUdp", Objects: d.UserUDP},
		{Name: "ServiceUserIcmp", Objects: d.UserICMP},
		{Name: "ServiceUserOther", Objects: d.UserOther},
		{Name: "GroupService", Group: true, Objects: d.ServiceGroups},
		{Name: "GroupNetObject", Group: true, Objects: d.NetworkGroups},
	}
}

// Object is any named, GUID-identified configuration object. Members is
// filled with the Ref attribute of every nested element, which for group
// objects lists the group's members.
type Object struct {
	Guid    string
	HasGuid bool
	Name    string
	Members []string
}

// UnmarshalXML reads the Guid and Name attributes and collects nested Ref
// attributes at any depth.
func (o *Object) UnmarshalXML(dec *xml.Decoder, start xml.StartElement) error {
	o.Guid, o.HasGuid = attrValue(start, "Guid")
	o.Name, _ = attrValue(start, "Name")

	depth := 0
	for {
		t, err := dec.Token()
		if err != nil {
			return err
		}
		switch val := t.(type) {
		case xml.StartElement:
			depth++
			if ref, ok := attrValue(val, "Ref"); ok {
				o.Members = append(o.Members, ref)
			}
		case xml.EndElement:
			if depth == 0 {
				return nil
			}
			depth--
		}
	}
}

type RuleElement struct {
	Name string `xml:"Name,attr"`
	Desc string `xml:"Desc,attr"`

	General      *General       `xml:"General"`
	Sources      []Reference    `xml:"Criteria>ListSource>Source"`
	Destinations []Reference    `xml:"Criteria>ListDestination>Destination"`
	Services     []Reference    `xml:"Criteria>ListService>Service"`
	Action       *ActionElement `xml:"Action"`
}

type General struct {
	Activated *string `xml:"Activated,attr"`
	SeqNum    *string `xml:"SeqNum"`
	Log       *string `xml:"Log"`
}

type Reference struct {
	Ref string `xml:"Ref,attr"`
}

type ActionElement struct {
	Block  *Choice       `xml:"Block"`
	Reject *Choice       `xml:"Reject"`
	Accept *AcceptChoice `xml:"Accept"`
}

type Choice struct {
	Selected string `xml:"Selected,attr"`
}

type AcceptChoice struct {
	Selected               string       `xml:"Selected,attr"`
	SourceTranslation      *Translation `xml:"ListTranslation>RuleTranslation>SourceTranslation"`
	DestinationTranslation *Translation `xml:"ListTranslation>RuleTranslation>DestinationTranslation"`
}

type Translation struct {
	Enabled *string `xml:"Enabled,attr"`
}

// ParseError reports an export that could not be opened or is not
// well-formed XML.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("failed to parse XML: %v", e.Err)
	}
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type ArkoonParser struct {
	decoder *xml.Decoder

	Document *Document
}

func NewArkoonParser(reader io.Reader) *ArkoonParser {
	dec := xml.NewDecoder(reader)
	// Arkoon appliances export ISO-8859-1 documents.
	dec.CharsetReader = charset.NewReaderLabel
	return &ArkoonParser{decoder: dec}
}

func (p *ArkoonParser) Parse() error {
	var doc Document
	if err := p.decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return &ParseError{Err: err}
	}
	if err := p.checkTrailer(); err != nil {
		return &ParseError{Err: err}
	}
	p.Document = &doc
	return nil
}

// checkTrailer reads the rest of the input; only whitespace, comments and
// processing instructions may follow the root element.
func (p *ArkoonParser) checkTrailer() error {
	for {
		t, err := p.decoder.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch val := t.(type) {
		case xml.CharData:
			if len(bytes.TrimSpace(val)) != 0 {
				return fmt.Errorf("junk after document element: %q", bytes.TrimSpace(val))
			}
		case xml.Comment, xml.ProcInst:
		case xml.StartElement:
			return fmt.Errorf("junk after document element: <%s>", val.Name.Local)
		default:
			return fmt.Errorf("junk after document element: %T", val)
		}
	}
}

// Load opens and decodes the export at path.
func Load(path string) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	defer file.Close()

	p := NewArkoonParser(file)
	if err := p.Parse(); err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Path = path
		}
		return nil, err
	}
	return p.Document, nil
}

func attrValue(el xml.StartElement, name string) (string, bool) {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value, true
		}
	}
	return "", false
}
