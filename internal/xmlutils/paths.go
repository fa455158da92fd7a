// Package xmlutils provides XPath helpers for the XML statement dialects.
package xmlutils

// CAMT053 holds the XPath expressions used for CAMT.053 parsing. Entry fields are
// relative to an Ntry node.
type CAMT053 struct {
	Statement string
	Entries   string

	Entry struct {
		Amount          string
		Currency        string
		CreditDebitInd  string
		BookingDate     string
		BookingDateTime string
		ValueDate       string
		Status          string
		AccountSvcRef   string
		EntryRef        string
		AddEntryInfo    string
	}

	Remittance struct {
		UnstructuredInfo string
		AdditionalTxInfo string
	}

	Party struct {
		DebtorName   string
		CreditorName string
	}

	Balance struct {
		Amount         string
		CreditDebitInd string
		Code           string
	}
}

// DefaultCamt053XPaths returns the standard CAMT.053 expressions.
func DefaultCamt053XPaths() CAMT053 {
	camt := CAMT053{
		Statement: "//BkToCstmrStmt/Stmt",
		Entries:   "//BkToCstmrStmt/Stmt/Ntry",
	}

	camt.Entry.Amount = "Amt"
	camt.Entry.Currency = "Amt/@Ccy"
	camt.Entry.CreditDebitInd = "CdtDbtInd"
	camt.Entry.BookingDate = "BookgDt/Dt"
	camt.Entry.BookingDateTime = "BookgDt/DtTm"
	camt.Entry.ValueDate = "ValDt/Dt"
	camt.Entry.Status = "Sts"
	camt.Entry.AccountSvcRef = "AcctSvcrRef"
	camt.Entry.EntryRef = "NtryRef"
	camt.Entry.AddEntryInfo = "AddtlNtryInf"

	camt.Remittance.UnstructuredInfo = "NtryDtls/TxDtls/RmtInf/Ustrd"
	camt.Remittance.AdditionalTxInfo = "NtryDtls/TxDtls/AddtlTxInf"

	camt.Party.DebtorName = "NtryDtls/TxDtls/RltdPties/Dbtr/Nm"
	camt.Party.CreditorName = "NtryDtls/TxDtls/RltdPties/Cdtr/Nm"

	camt.Balance.Amount = "//BkToCstmrStmt/Stmt/Bal/Amt"
	camt.Balance.CreditDebitInd = "//BkToCstmrStmt/Stmt/Bal/CdtDbtInd"
	camt.Balance.Code = "//BkToCstmrStmt/Stmt/Bal/Tp/CdOrPrtry/Cd"

	return camt
}
