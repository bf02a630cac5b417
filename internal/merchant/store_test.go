package merchant

import (
	"strings"
	"testing"
)

const testCSV = `merchant_id,city,mcc_code,message,mcc_description
123,São Paulo,5462,Faço doces e bolos para festas na zona leste,Padaria da Ana
456,São Paulo,5812,Restaurante procurando fornecedor de doces para sobremesas,Cantina do Zé
789,Campinas,5499,Entregas rápidas em Campinas e região,
`

func loadTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Load(strings.NewReader(testCSV))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return s
}

func Test_Load_AllRecords(t *testing.T) {
	t.Parallel()
	s := loadTestStore(t)

	if s.Len() != 3 {
		t.Fatalf("want 3 records, got %d", s.Len())
	}
	if s.All()[0].ID != "123" || s.All()[2].ID != "789" {
		t.Errorf("dataset order not preserved: %v", s.All())
	}
}

func Test_Load_ByID(t *testing.T) {
	t.Parallel()
	s := loadTestStore(t)

	rec, ok := s.ByID("456")
	if !ok {
		t.Fatal("expected record 456")
	}
	if rec.City != "São Paulo" || rec.CategoryCode != "5812" {
		t.Errorf("unexpected record: %+v", rec)
	}

	if _, ok := s.ByID("nope"); ok {
		t.Error("expected miss for unknown id")
	}
}

func Test_Load_DisplayNameFallback(t *testing.T) {
	t.Parallel()
	s := loadTestStore(t)

	if got := s.DisplayName("123"); got != "Padaria da Ana" {
		t.Errorf("display name: got %q", got)
	}
	// Empty mcc_description falls back to the merchant id.
	if got := s.DisplayName("789"); got != "789" {
		t.Errorf("fallback display name: got %q", got)
	}
	// Unknown ids echo back the id.
	if got := s.DisplayName("000"); got != "000" {
		t.Errorf("unknown display name: got %q", got)
	}
}

func Test_Load_MissingColumn(t *testing.T) {
	t.Parallel()
	_, err := Load(strings.NewReader("merchant_id,city\n1,x\n"))
	if err == nil {
		t.Fatal("expected error for missing columns")
	}
	if !strings.Contains(err.Error(), "mcc_code") {
		t.Errorf("error should name the missing column, got: %v", err)
	}
}

func Test_Load_DuplicateID(t *testing.T) {
	t.Parallel()
	csv := "merchant_id,city,mcc_code,message\n1,a,b,c\n1,d,e,f\n"
	_, err := Load(strings.NewReader(csv))
	if err == nil {
		t.Fatal("expected error for duplicate merchant_id")
	}
}

func Test_Load_EmptyID(t *testing.T) {
	t.Parallel()
	csv := "merchant_id,city,mcc_code,message\n,a,b,c\n"
	_, err := Load(strings.NewReader(csv))
	if err == nil {
		t.Fatal("expected error for empty merchant_id")
	}
}
