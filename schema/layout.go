package schema

import (
	"memsync/process"
)

// Layout describes where the reflection registry keeps its data. Every value
// is tied to a build of the target and can be overridden from configuration.
type Layout struct {
	// Code reference to the registry root inside the schema module
	Pattern        string `mapstructure:"pattern"`
	PatternOperand int    `mapstructure:"pattern_operand"`
	PatternLength  int    `mapstructure:"pattern_length"`

	// Root
	ScopeCount process.ProcessMemorySize `mapstructure:"scope_count"`
	ScopeArray process.ProcessMemorySize `mapstructure:"scope_array"`
	MaxScopes  int                       `mapstructure:"max_scopes"`

	// Scope
	ScopeName    process.ProcessMemorySize `mapstructure:"scope_name"`
	ClassTable   process.ProcessMemorySize `mapstructure:"class_table"`
	Buckets      process.ProcessMemorySize `mapstructure:"buckets"`
	BucketCount  int                       `mapstructure:"bucket_count"`
	BucketStride process.ProcessMemorySize `mapstructure:"bucket_stride"`
	BucketFirst  process.ProcessMemorySize `mapstructure:"bucket_first"`
	ElementNext  process.ProcessMemorySize `mapstructure:"element_next"`
	ElementData  process.ProcessMemorySize `mapstructure:"element_data"`
	FreeList     process.ProcessMemorySize `mapstructure:"free_list"`
	BlobNext     process.ProcessMemorySize `mapstructure:"blob_next"`
	BlobData     process.ProcessMemorySize `mapstructure:"blob_data"`
	MaxChain     int                       `mapstructure:"max_chain"`

	// Class
	ClassName       process.ProcessMemorySize `mapstructure:"class_name"`
	ClassSize       process.ProcessMemorySize `mapstructure:"class_size"`
	ClassFieldCount process.ProcessMemorySize `mapstructure:"class_field_count"`
	ClassFields     process.ProcessMemorySize `mapstructure:"class_fields"`
	MaxFieldCount   int                       `mapstructure:"max_field_count"`

	// Field
	FieldStride process.ProcessMemorySize `mapstructure:"field_stride"`
	FieldName   process.ProcessMemorySize `mapstructure:"field_name"`
	FieldOffset process.ProcessMemorySize `mapstructure:"field_offset"`

	NameLength process.ProcessMemorySize `mapstructure:"name_length"`
}

// DefaultLayout matches the current Linux build of the target.
func DefaultLayout() Layout {
	return Layout{
		Pattern:        "48 8D 3D ? ? ? ? E8 ? ? ? ? 48 8B BD ? ? ? ? 31 F6 E8 ? ? ? ? E9",
		PatternOperand: 3,
		PatternLength:  7,

		ScopeCount: 0x1F0,
		ScopeArray: 0x1F8,
		MaxScopes:  1024,

		ScopeName:    0x08,
		ClassTable:   0x560,
		Buckets:      0x90,
		BucketCount:  1024,
		BucketStride: 24,
		BucketFirst:  0x28,
		ElementNext:  0x08,
		ElementData:  0x10,
		FreeList:     0x20,
		BlobNext:     0x00,
		BlobData:     0x10,
		MaxChain:     1 << 16,

		ClassName:       0x08,
		ClassSize:       0x18,
		ClassFieldCount: 0x1C,
		ClassFields:     0x28,
		MaxFieldCount:   20000,

		FieldStride: 0x20,
		FieldName:   0x00,
		FieldOffset: 0x10,

		NameLength: 256,
	}
}
