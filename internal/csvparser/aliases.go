package csvparser

import (
	"fmt"
	"os"

	"erpfin/bank-sync/internal/textutils"

	"gopkg.in/yaml.v3"
)

// Column is a logical statement column.
type Column string

// Logical columns recognized in statement headers.
const (
	ColumnDate        Column = "date"
	ColumnDescription Column = "description"
	ColumnAmount      Column = "amount"
	ColumnDebit       Column = "debit"
	ColumnCredit      Column = "credit"
	ColumnType        Column = "type"
	ColumnBalance     Column = "balance"
	ColumnDocNo       Column = "docNo"
)

// matchPriority is the order in which columns claim headers in the exact pass. It also
// breaks ties between equally long aliases in the substring pass.
var matchPriority = []Column{
	ColumnDate,
	ColumnDebit,
	ColumnCredit,
	ColumnBalance,
	ColumnType,
	ColumnDocNo,
	ColumnDescription,
	ColumnAmount,
}

// AliasTable maps each logical column to the header texts that denote it.
type AliasTable map[Column][]string

// DefaultAliases returns the built-in Portuguese and English header aliases.
func DefaultAliases() AliasTable {
	return AliasTable{
		ColumnDate: {
			"data", "date", "dt", "data lancamento", "data do lancamento", "dt lancamento",
			"dt. lancamento", "data movimento",
			"data mov", "data da transacao", "data transacao", "data contabil", "data operacao",
			"transaction date", "posting date", "booking date",
		},
		ColumnDescription: {
			"descricao", "historico", "description", "memo", "lancamento", "detalhes",
			"detalhe", "details", "narrative", "estabelecimento", "identificacao", "titulo",
			"payee",
		},
		ColumnAmount: {
			"valor", "amount", "value", "valor (r$)", "valor r$", "quantia", "montante",
			"valor lancamento", "valor do lancamento",
		},
		ColumnDebit: {
			"debito", "debit", "debitos", "saida", "saidas", "valor debito", "debito (r$)",
			"withdrawal", "withdrawals", "paid out",
		},
		ColumnCredit: {
			"credito", "credit", "creditos", "entrada", "entradas", "valor credito",
			"credito (r$)", "deposit", "deposits", "paid in",
		},
		ColumnType: {
			"tipo", "type", "d/c", "c/d", "dc", "cd", "natureza", "tipo lancamento",
			"tipo de transacao", "debit/credit", "credit/debit", "credito/debito",
			"debito/credito", "credito / debito", "debito / credito",
		},
		ColumnBalance: {
			"saldo", "balance", "saldo (r$)", "running balance", "saldo apos lancamento",
		},
		ColumnDocNo: {
			"documento", "doc", "n documento", "no documento", "numero documento",
			"nr documento", "num doc", "n doc", "referencia", "reference", "id", "fitid",
			"id transacao", "transaction id",
		},
	}
}

// Merge returns a copy of t with extra appended to each column.
func (t AliasTable) Merge(extra AliasTable) AliasTable {
	out := make(AliasTable, len(t))
	for col, aliases := range t {
		out[col] = append([]string(nil), aliases...)
	}
	for col, aliases := range extra {
		out[col] = append(out[col], aliases...)
	}
	return out
}

// Expected renders the table as the "expected aliases" of a format error.
func (t AliasTable) Expected(columns ...Column) map[string][]string {
	out := make(map[string][]string, len(columns))
	for _, col := range columns {
		out[string(col)] = t[col]
	}
	return out
}

// normalized returns the table with every alias accent-folded and lowercased.
func (t AliasTable) normalized() AliasTable {
	out := make(AliasTable, len(t))
	for col, aliases := range t {
		for _, alias := range aliases {
			if key := textutils.NormalizeKey(alias); key != "" {
				out[col] = append(out[col], key)
			}
		}
	}
	return out
}

// LoadAliasFile reads extra header aliases from a YAML file of the form
//
//	date: ["dt. pagamento"]
//	description: ["complemento"]
//
// and merges them into the default table.
func LoadAliasFile(path string) (AliasTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read alias file: %w", err)
	}

	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse alias file %s: %w", path, err)
	}

	known := make(map[Column]bool, len(matchPriority))
	for _, col := range matchPriority {
		known[col] = true
	}
	extra := make(AliasTable, len(raw))
	for key, aliases := range raw {
		col := Column(key)
		if !known[col] {
			return nil, fmt.Errorf("alias file %s: unknown column %q", path, key)
		}
		extra[col] = aliases
	}
	return DefaultAliases().Merge(extra), nil
}
