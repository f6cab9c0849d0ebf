package domain

// MintMode identifies which programs built a mint.
type MintMode string

const (
	MintModeDirect  MintMode = "direct"
	MintModeProgram MintMode = "program"
)

// MintDescriptor is the token class created by a mint.
type MintDescriptor struct {
	Address         string // base58 mint address
	Decimals        uint8  // always 0 for a non-fungible mint
	MintAuthority   string
	FreezeAuthority string
}

// HolderAccount is the associated token account that custodies the single unit.
type HolderAccount struct {
	Address string
	Owner   string
	Mint    string
	Balance uint64 // 0 before confirmation, 1 after
}

// MetadataRecord is the descriptive record bound to the mint.
type MetadataRecord struct {
	Address              string // derived from (metadata program, mint)
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Mutable              bool
}

// MintResult is the success descriptor of one mint.
type MintResult struct {
	Mint          MintDescriptor
	Holder        HolderAccount
	Metadata      *MetadataRecord // nil when no metadata was attached
	MasterEdition string          // empty when no master edition was created
	Signatures    []string        // one per packed transaction, in submission order
}

// MintRecord is the audit row of a completed mint.
// Corresponds to mint_records table in PostgreSQL.
type MintRecord struct {
	RequestID     string   // PRIMARY KEY, deterministic hash
	Mode          MintMode // direct | program
	Cluster       string   // mainnet-beta | devnet | testnet | custom
	Payer         string
	Owner         string
	Mint          string
	Holder        string
	Metadata      *string // nullable
	MasterEdition *string // nullable
	Name          *string // nullable
	Symbol        *string // nullable
	URI           *string // nullable
	Signatures    []string
	CreatedAt     int64 // Unix timestamp in milliseconds
}
