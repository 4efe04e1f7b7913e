package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/shopspring/decimal"
)

// JSON wire format for manifests. Every instruction is an object tagged by
// "instruction"; every value is an object tagged by "kind".

type valueWire struct {
	Kind        ValueKind       `json:"kind"`
	ElementKind ValueKind       `json:"element_kind,omitempty"`
	Fields      []valueWire     `json:"fields,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
}

type instructionWire struct {
	Instruction string               `json:"instruction"`
	AccessRule  AccessRule           `json:"access_rule,omitempty"`
	Address     *ManifestAddress     `json:"address,omitempty"`
	Method      string               `json:"method_name,omitempty"`
	Args        *valueWire           `json:"args,omitempty"`
	Resource    *ResourceAddress     `json:"resource_address,omitempty"`
	Amount      *decimal.Decimal     `json:"amount,omitempty"`
	IDs         []NonFungibleLocalID `json:"ids,omitempty"`
	Bucket      *BucketID            `json:"bucket,omitempty"`
	Constraints ResourceConstraints  `json:"constraints,omitempty"`
}

// DecodeError locates a malformed instruction in an encoded manifest.
type DecodeError struct {
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("instruction %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func encodeValue(v Value) (valueWire, error) {
	w := valueWire{Kind: v.Kind()}
	var scalar any
	switch tv := v.(type) {
	case Tuple:
		fields, err := encodeValues(tv.Fields)
		if err != nil {
			return valueWire{}, err
		}
		w.Fields = fields
		return w, nil
	case Array:
		elems, err := encodeValues(tv.Elements)
		if err != nil {
			return valueWire{}, err
		}
		w.ElementKind = tv.ElementKind
		w.Fields = elems
		return w, nil
	case Bucket:
		scalar = uint32(tv.ID)
	case Proof:
		scalar = uint32(tv.ID)
	case ExpressionValue:
		scalar = tv.Expression.String()
	case AddressValue:
		scalar = tv.Address
	case DecimalValue:
		scalar = tv.Amount
	case StringValue:
		scalar = tv.Value
	case U64Value:
		scalar = strconv.FormatUint(tv.Value, 10)
	case LocalIDValue:
		scalar = string(tv.ID)
	default:
		return valueWire{}, fmt.Errorf("unsupported value %T", v)
	}
	raw, err := json.Marshal(scalar)
	if err != nil {
		return valueWire{}, err
	}
	w.Value = raw
	return w, nil
}

func encodeValues(values []Value) ([]valueWire, error) {
	out := make([]valueWire, len(values))
	for i, v := range values {
		w, err := encodeValue(v)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

// checkValueShape rejects wire values carrying fields their kind does not use.
func checkValueShape(w valueWire) error {
	switch w.Kind {
	case KindTuple, KindArray:
		if len(w.Value) != 0 {
			return fmt.Errorf("%s carries a scalar value", w.Kind)
		}
		if w.Kind == KindTuple && w.ElementKind != "" {
			return fmt.Errorf("tuple carries an element kind")
		}
	default:
		if len(w.Fields) != 0 || w.ElementKind != "" {
			return fmt.Errorf("%s carries nested fields", w.Kind)
		}
	}
	return nil
}

func decodeValue(w valueWire) (Value, error) {
	if err := checkValueShape(w); err != nil {
		return nil, err
	}
	switch w.Kind {
	case KindTuple:
		fields, err := decodeValues(w.Fields)
		if err != nil {
			return nil, err
		}
		return Tuple{Fields: fields}, nil
	case KindArray:
		elems, err := decodeValues(w.Fields)
		if err != nil {
			return nil, err
		}
		for _, e := range elems {
			if e.Kind() != w.ElementKind {
				return nil, fmt.Errorf("array of %s contains %s", w.ElementKind, e.Kind())
			}
		}
		return Array{ElementKind: w.ElementKind, Elements: elems}, nil
	case KindBucket:
		var id uint32
		if err := json.Unmarshal(w.Value, &id); err != nil {
			return nil, fmt.Errorf("bucket: %w", err)
		}
		return Bucket{ID: BucketID(id)}, nil
	case KindProof:
		var id uint32
		if err := json.Unmarshal(w.Value, &id); err != nil {
			return nil, fmt.Errorf("proof: %w", err)
		}
		return Proof{ID: ProofID(id)}, nil
	case KindExpression:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return nil, fmt.Errorf("expression: %w", err)
		}
		switch s {
		case ExpressionEntireWorktop.String():
			return ExpressionValue{Expression: ExpressionEntireWorktop}, nil
		case ExpressionEntireAuthZone.String():
			return ExpressionValue{Expression: ExpressionEntireAuthZone}, nil
		}
		return nil, fmt.Errorf("unknown expression %q", s)
	case KindAddress:
		var a ManifestAddress
		if err := json.Unmarshal(w.Value, &a); err != nil {
			return nil, fmt.Errorf("address: %w", err)
		}
		return AddressValue{Address: a}, nil
	case KindDecimal:
		var d decimal.Decimal
		if err := json.Unmarshal(w.Value, &d); err != nil {
			return nil, fmt.Errorf("decimal: %w", err)
		}
		return DecimalValue{Amount: d}, nil
	case KindString:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return nil, fmt.Errorf("string: %w", err)
		}
		return StringValue{Value: s}, nil
	case KindU64:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return nil, fmt.Errorf("u64: %w", err)
		}
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("u64: %w", err)
		}
		return U64Value{Value: n}, nil
	case KindLocalID:
		var s string
		if err := json.Unmarshal(w.Value, &s); err != nil {
			return nil, fmt.Errorf("local id: %w", err)
		}
		id := NonFungibleLocalID(s)
		if err := id.Validate(); err != nil {
			return nil, err
		}
		return LocalIDValue{ID: id}, nil
	default:
		return nil, fmt.Errorf("unknown value kind %q", w.Kind)
	}
}

func decodeValues(ws []valueWire) ([]Value, error) {
	if len(ws) == 0 {
		return nil, nil
	}
	out := make([]Value, len(ws))
	for i, w := range ws {
		v, err := decodeValue(w)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decodeTuple(w *valueWire) (Tuple, error) {
	if w == nil {
		return Tuple{}, nil
	}
	v, err := decodeValue(*w)
	if err != nil {
		return Tuple{}, err
	}
	t, ok := v.(Tuple)
	if !ok {
		return Tuple{}, fmt.Errorf("args must be a tuple, got %s", v.Kind())
	}
	return t, nil
}

func encodeInstruction(in Instruction) (instructionWire, error) {
	w := instructionWire{Instruction: in.Name()}
	switch ti := in.(type) {
	case VerifyParent:
		w.AccessRule = ti.AccessRule
	case CallMethod:
		addr := ti.Address
		args, err := encodeValue(ti.Args)
		if err != nil {
			return instructionWire{}, err
		}
		w.Address, w.Method, w.Args = &addr, ti.Method, &args
	case TakeFromWorktop:
		res, amt := ti.Resource, ti.Amount
		w.Resource, w.Amount = &res, &amt
	case TakeAllFromWorktop:
		res := ti.Resource
		w.Resource = &res
	case TakeNonFungiblesFromWorktop:
		res := ti.Resource
		w.Resource, w.IDs = &res, ti.IDs
	case ReturnToWorktop:
		b := ti.Bucket
		w.Bucket = &b
	case AssertWorktopContains:
		res, amt := ti.Resource, ti.Amount
		w.Resource, w.Amount = &res, &amt
	case AssertNextCallReturnsOnly:
		w.Constraints = ti.Constraints
	case CreateProofFromAuthZoneOfNonFungibles:
		res := ti.Resource
		w.Resource, w.IDs = &res, ti.IDs
	case DropAllProofs:
	case YieldToParent:
		args, err := encodeValue(ti.Args)
		if err != nil {
			return instructionWire{}, err
		}
		w.Args = &args
	default:
		return instructionWire{}, fmt.Errorf("unsupported instruction %T", in)
	}
	return w, nil
}

// instructionFields lists the wire fields each instruction may carry.
var instructionFields = map[string][]string{
	"VerifyParent":                          {"access_rule"},
	"CallMethod":                            {"address", "method_name", "args"},
	"TakeFromWorktop":                       {"resource_address", "amount"},
	"TakeAllFromWorktop":                    {"resource_address"},
	"TakeNonFungiblesFromWorktop":           {"resource_address", "ids"},
	"ReturnToWorktop":                       {"bucket"},
	"AssertWorktopContains":                 {"resource_address", "amount"},
	"AssertNextCallReturnsOnly":             {"constraints"},
	"CreateProofFromAuthZoneOfNonFungibles": {"resource_address", "ids"},
	"DropAllProofs":                         nil,
	"YieldToParent":                         {"args"},
}

func (w instructionWire) present() []string {
	var out []string
	add := func(set bool, name string) {
		if set {
			out = append(out, name)
		}
	}
	add(len(w.AccessRule) != 0, "access_rule")
	add(w.Address != nil, "address")
	add(w.Method != "", "method_name")
	add(w.Args != nil, "args")
	add(w.Resource != nil, "resource_address")
	add(w.Amount != nil, "amount")
	add(w.IDs != nil, "ids")
	add(w.Bucket != nil, "bucket")
	add(w.Constraints != nil, "constraints")
	return out
}

func decodeInstruction(w instructionWire) (Instruction, error) {
	if allowed, known := instructionFields[w.Instruction]; known {
		for _, f := range w.present() {
			if !slices.Contains(allowed, f) {
				return nil, fmt.Errorf("%s: unexpected field %q", w.Instruction, f)
			}
		}
	}
	needResource := func() (ResourceAddress, error) {
		if w.Resource == nil {
			return ResourceAddress{}, fmt.Errorf("%s: missing resource_address", w.Instruction)
		}
		return *w.Resource, nil
	}
	needAmount := func() (decimal.Decimal, error) {
		if w.Amount == nil {
			return decimal.Decimal{}, fmt.Errorf("%s: missing amount", w.Instruction)
		}
		return *w.Amount, nil
	}
	checkIDs := func() error {
		for _, id := range w.IDs {
			if err := id.Validate(); err != nil {
				return err
			}
		}
		return nil
	}

	switch w.Instruction {
	case "VerifyParent":
		return VerifyParent{AccessRule: w.AccessRule}, nil
	case "CallMethod":
		if w.Address == nil {
			return nil, fmt.Errorf("CallMethod: missing address")
		}
		if w.Method == "" {
			return nil, fmt.Errorf("CallMethod: missing method_name")
		}
		args, err := decodeTuple(w.Args)
		if err != nil {
			return nil, fmt.Errorf("CallMethod: %w", err)
		}
		return CallMethod{Address: *w.Address, Method: w.Method, Args: args}, nil
	case "TakeFromWorktop":
		res, err := needResource()
		if err != nil {
			return nil, err
		}
		amt, err := needAmount()
		if err != nil {
			return nil, err
		}
		return TakeFromWorktop{Resource: res, Amount: amt}, nil
	case "TakeAllFromWorktop":
		res, err := needResource()
		if err != nil {
			return nil, err
		}
		return TakeAllFromWorktop{Resource: res}, nil
	case "TakeNonFungiblesFromWorktop":
		res, err := needResource()
		if err != nil {
			return nil, err
		}
		if err := checkIDs(); err != nil {
			return nil, err
		}
		return TakeNonFungiblesFromWorktop{Resource: res, IDs: w.IDs}, nil
	case "ReturnToWorktop":
		if w.Bucket == nil {
			return nil, fmt.Errorf("ReturnToWorktop: missing bucket")
		}
		return ReturnToWorktop{Bucket: *w.Bucket}, nil
	case "AssertWorktopContains":
		res, err := needResource()
		if err != nil {
			return nil, err
		}
		amt, err := needAmount()
		if err != nil {
			return nil, err
		}
		return AssertWorktopContains{Resource: res, Amount: amt}, nil
	case "AssertNextCallReturnsOnly":
		if err := w.Constraints.Validate(); err != nil {
			return nil, err
		}
		return AssertNextCallReturnsOnly{Constraints: w.Constraints}, nil
	case "CreateProofFromAuthZoneOfNonFungibles":
		res, err := needResource()
		if err != nil {
			return nil, err
		}
		if err := checkIDs(); err != nil {
			return nil, err
		}
		return CreateProofFromAuthZoneOfNonFungibles{Resource: res, IDs: w.IDs}, nil
	case "DropAllProofs":
		return DropAllProofs{}, nil
	case "YieldToParent":
		args, err := decodeTuple(w.Args)
		if err != nil {
			return nil, fmt.Errorf("YieldToParent: %w", err)
		}
		return YieldToParent{Args: args}, nil
	default:
		return nil, fmt.Errorf("unknown instruction %q", w.Instruction)
	}
}

// EncodeInstructions renders an instruction list as a JSON array.
func EncodeInstructions(instructions []Instruction) ([]byte, error) {
	wires := make([]instructionWire, len(instructions))
	for i, in := range instructions {
		w, err := encodeInstruction(in)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		wires[i] = w
	}
	return json.Marshal(wires)
}

// DecodeInstructions parses a JSON array of instructions. A malformed
// element yields a *DecodeError carrying its index.
func DecodeInstructions(data []byte) ([]Instruction, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, &DecodeError{Index: -1, Err: err}
	}
	out := make([]Instruction, len(raws))
	for i, raw := range raws {
		var w instructionWire
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&w); err != nil {
			return nil, &DecodeError{Index: i, Err: err}
		}
		in, err := decodeInstruction(w)
		if err != nil {
			return nil, &DecodeError{Index: i, Err: err}
		}
		out[i] = in
	}
	return out, nil
}

func (m SubintentManifest) MarshalJSON() ([]byte, error) {
	body, err := EncodeInstructions(m.Instructions)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Instructions json.RawMessage `json:"instructions"`
	}{body})
}

func (m *SubintentManifest) UnmarshalJSON(data []byte) error {
	var env struct {
		Instructions json.RawMessage `json:"instructions"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	if len(env.Instructions) == 0 {
		m.Instructions = nil
		return nil
	}
	ins, err := DecodeInstructions(env.Instructions)
	if err != nil {
		return err
	}
	m.Instructions = ins
	return nil
}
