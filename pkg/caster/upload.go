package caster

import (
	"fmt"

	"github.com/r2northstar/recsync/pkg/record"
	"github.com/r2northstar/recsync/pkg/wire"
)

// upload emits the engine's entire record inventory as AddRecord/AddInfo
// frames, in inventory order, followed by UploadDone. Emission order within
// a record is fixed (record, then alias, then properties) so the server can
// build the entity before attaching metadata; property emission order is
// unspecified, since Go's map iteration order is randomized and callers must
// not depend on it.
func (e *Engine) upload(conn *wire.Conn) error {
	for i, r := range e.records {
		recID := record.ID(i)

		if err := conn.WriteMessage(wire.MsgAddRecord{
			RecID: recID,
			Atype: wire.RecordPrimary,
			RType: r.Type,
			RName: r.Name,
		}); err != nil {
			return fmt.Errorf("send AddRecord for %q: %w", r.Name, err)
		}

		if r.HasAlias() {
			if err := conn.WriteMessage(wire.MsgAddRecord{
				RecID: recID,
				Atype: wire.RecordAlias,
				RType: r.Type,
				RName: r.Alias,
			}); err != nil {
				return fmt.Errorf("send AddRecord alias for %q: %w", r.Name, err)
			}
		}

		for k, v := range r.Properties {
			if err := conn.WriteMessage(wire.MsgAddInfo{
				RecID: recID,
				Key:   k,
				Value: v,
			}); err != nil {
				return fmt.Errorf("send AddInfo %q for %q: %w", k, r.Name, err)
			}
		}

		e.metrics.recordsUploaded.Add(1)
	}

	if err := conn.WriteMessage(wire.MsgUploadDone{}); err != nil {
		return fmt.Errorf("send UploadDone: %w", err)
	}
	return nil
}
