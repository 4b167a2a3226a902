package domain

import (
	"encoding/json"
	"fmt"
)

// MarshalDetails serializes an activity payload for storage or publishing.
// Nil details marshal as null.
func MarshalDetails(d ActivityDetails) ([]byte, error) {
	if d == nil {
		return []byte("null"), nil
	}
	if u, ok := d.(UnknownDetails); ok {
		// Preserve the wire payload untouched.
		if len(u.Raw) == 0 {
			return []byte("null"), nil
		}
		return u.Raw, nil
	}
	return json.Marshal(d)
}

// UnmarshalDetails rebuilds the typed payload for a record of the given type.
// Unknown types keep the raw payload; records are never dropped for having a
// shape the engine does not recognize.
func UnmarshalDetails(t ActivityType, raw []byte) (ActivityDetails, error) {
	if len(raw) == 0 || string(raw) == "null" {
		if t == TypeUnknown {
			return UnknownDetails{}, nil
		}
		return nil, nil
	}

	switch t {
	case TypeInitialized:
		var v InitializedDetails
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s details: %w", t, err)
		}
		return v, nil
	case TypeProposalCreated:
		var v ProposalCreatedDetails
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s details: %w", t, err)
		}
		return v, nil
	case TypeProposalApproved:
		var v ProposalApprovedDetails
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s details: %w", t, err)
		}
		return v, nil
	case TypeProposalReady:
		var v ProposalReadyDetails
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s details: %w", t, err)
		}
		return v, nil
	case TypeProposalExecuted:
		var v ProposalExecutedDetails
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s details: %w", t, err)
		}
		return v, nil
	case TypeProposalRejected:
		var v ProposalRejectedDetails
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s details: %w", t, err)
		}
		return v, nil
	case TypeSignerAdded, TypeSignerRemoved:
		var v SignerChangedDetails
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s details: %w", t, err)
		}
		return v, nil
	case TypeConfigUpdated:
		var v ConfigUpdatedDetails
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s details: %w", t, err)
		}
		return v, nil
	case TypeRoleAssigned:
		var v RoleAssignedDetails
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("unmarshal %s details: %w", t, err)
		}
		return v, nil
	default:
		return UnknownDetails{Raw: append(json.RawMessage(nil), raw...)}, nil
	}
}
