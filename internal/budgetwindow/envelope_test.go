package budgetwindow

import "testing"

func TestExtractJSONObjectSurroundedByProse(t *testing.T) {
	raw := "Sure, here it is:\n{\"score\":55,\"status\":\"YELLOW\"}\nHope this helps!"
	obj, err := ExtractJSONObject(raw)
	if err != nil {
		t.Fatalf("ExtractJSONObject: %v", err)
	}
	if obj != `{"score":55,"status":"YELLOW"}` {
		t.Errorf("unexpected envelope %q", obj)
	}
}

func TestExtractJSONObjectNoBraces(t *testing.T) {
	if _, err := ExtractJSONObject("no json here"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := ExtractJSONObject("} reversed {"); err == nil {
		t.Fatal("expected error for reversed braces")
	}
}

func TestDecodeJSONObject(t *testing.T) {
	var out struct {
		Score  int    `json:"score"`
		Status Status `json:"status"`
	}
	raw := "preamble {\"score\":55,\"status\":\"YELLOW\"} trailing"
	if err := DecodeJSONObject(raw, &out); err != nil {
		t.Fatalf("DecodeJSONObject: %v", err)
	}
	if out.Score != 55 || out.Status != StatusYellow {
		t.Errorf("decoded %+v", out)
	}
}

func TestDecodeJSONObjectInvalidInside(t *testing.T) {
	var out map[string]any
	if err := DecodeJSONObject("here: {not valid json}", &out); err == nil {
		t.Fatal("expected error for invalid JSON inside braces")
	}
}
