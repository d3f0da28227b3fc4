package schedule

import (
	"errors"
	"testing"
)

func TestXMLToMapSingleVsRepeated(t *testing.T) {
	doc := []byte(`<root>
		<item><name>one</name></item>
		<single><name>only</name></single>
		<tag>a</tag>
		<tag>b</tag>
	</root>`)
	m, err := XMLToMap(doc)
	if err != nil {
		t.Fatalf("XMLToMap: %v", err)
	}
	root := node(m).child("root")
	if root == nil {
		t.Fatal("root element missing")
	}

	// a single occurrence still comes back as a one-element list
	items := root.list("item")
	if len(items) != 1 || items[0].str("name") != "one" {
		t.Errorf("item list = %v", items)
	}
	singles := root.list("single")
	if len(singles) != 1 || singles[0].str("name") != "only" {
		t.Errorf("single list = %v", singles)
	}

	tags := root.strList("tag")
	if len(tags) != 2 || tags[0] != "a" || tags[1] != "b" {
		t.Errorf("tag list = %v", tags)
	}
}

func TestXMLToMapRepeatedElements(t *testing.T) {
	doc := []byte(`<root>
		<item><name>one</name></item>
		<item><name>two</name></item>
	</root>`)
	m, err := XMLToMap(doc)
	if err != nil {
		t.Fatalf("XMLToMap: %v", err)
	}
	items := node(m).child("root").list("item")
	if len(items) != 2 {
		t.Fatalf("item count = %d, want 2", len(items))
	}
	if items[0].str("name") != "one" || items[1].str("name") != "two" {
		t.Errorf("items = %v", items)
	}
}

func TestNodeAccessorAbsentKeys(t *testing.T) {
	n := node{"present": "  padded  "}
	if n.str("present") != "padded" {
		t.Errorf("str should trim, got %q", n.str("present"))
	}
	if n.str("absent") != "" {
		t.Error("absent str should be empty")
	}
	if n.child("absent") != nil {
		t.Error("absent child should be nil")
	}
	if n.list("absent") != nil {
		t.Error("absent list should be nil")
	}
	if n.strList("absent") != nil {
		t.Error("absent strList should be nil")
	}

	var nilNode node
	if nilNode.str("x") != "" || nilNode.child("x") != nil || nilNode.list("x") != nil {
		t.Error("nil node accessors should return zero values")
	}
}

func TestXMLToMapMalformed(t *testing.T) {
	if _, err := XMLToMap([]byte(`<unclosed>`)); !errors.Is(err, ErrParse) {
		t.Errorf("err = %v, want ErrParse", err)
	}
}

func TestNormalizeDisease(t *testing.T) {
	cases := map[string]string{
		"Diphtheria": "diphtheria",
		"Hep B":      "hepb",
		" HPV ":      "hpv",
		"hepb":       "hepb",
	}
	for in, want := range cases {
		if got := NormalizeDisease(in); got != want {
			t.Errorf("NormalizeDisease(%q) = %q, want %q", in, got, want)
		}
	}
}
