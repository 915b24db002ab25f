package receipt

import (
	"fmt"
	"slices"

	"github.com/gyeh/receiptgen/internal/claimerr"
	"github.com/gyeh/receiptgen/internal/master"
	"github.com/gyeh/receiptgen/internal/model"
)

// transitions lists, for each record type, the types that may follow it.
// The empty type is the start state.
var transitions = map[RecordType][]RecordType{
	"": {HM},
	HM: {RE},
	RE: {HO},
	HO: {KO, SN},
	KO: {KO, SN},
	SN: {SN, JD},
	JD: {JD, MF},
	MF: {IH},
	IH: {HJ},
	HJ: {JS},
	JS: {SY},
	SY: {RJ},
	RJ: {KS, RE, GO},
	KS: {KS, RE, GO},
	GO: nil,
}

// Sequencer accepts records only in canonical file order and checks the
// per-claim payer record counts.
type Sequencer struct {
	records []Record
	last    RecordType
	ko      int
	sn      int
	jd      int
}

// Append adds rec if it may follow the previous record.
func (q *Sequencer) Append(rec Record) error {
	if !slices.Contains(transitions[q.last], rec.Type) {
		from := string(q.last)
		if from == "" {
			from = "start of file"
		}
		return fmt.Errorf("record %s may not follow %s", rec.Type, from)
	}
	switch rec.Type {
	case RE:
		q.ko, q.sn, q.jd = 0, 0, 0
	case KO:
		q.ko++
	case SN:
		q.sn++
	case JD:
		if q.last == SN && q.sn != q.ko+1 {
			return fmt.Errorf("claim has %d SN records for %d payers", q.sn, q.ko+1)
		}
		q.jd++
	case MF:
		if q.jd != q.ko+1 {
			return fmt.Errorf("claim has %d JD records for %d payers", q.jd, q.ko+1)
		}
	}
	q.records = append(q.records, rec)
	q.last = rec.Type
	return nil
}

// Records returns the accepted records. It fails unless the file is closed
// by a GO record.
func (q *Sequencer) Records() ([]Record, error) {
	if q.last != GO {
		return nil, fmt.Errorf("file is not closed by a GO record")
	}
	return q.records, nil
}

// EncodeClaim emits the per-patient block RE through the last KS record.
// seq is the claim's 1-based position in the file.
func EncodeClaim(seq int, c Claim, tbl *master.Table) ([]Record, error) {
	s := c.Snapshot
	for _, v := range s.Visits {
		if v.Date.Year() != s.Year || int(v.Date.Month()) != s.Month {
			return nil, &claimerr.Error{Kind: claimerr.InvalidFieldValue, Field: "visit_date",
				ServiceCode: v.ServiceCode, Value: Date(v.Date), Msg: "visit falls outside the service month"}
		}
	}

	b, err := newClaimBuilder(seq, c, tbl)
	if err != nil {
		return nil, err
	}

	var out []Record
	emit := func(rec Record, err error) error {
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	}

	if err := emit(b.re()); err != nil {
		return nil, err
	}
	if err := emit(b.ho()); err != nil {
		return nil, err
	}
	for _, p := range s.Payers {
		if err := emit(b.ko(p)); err != nil {
			return nil, err
		}
	}
	if err := emit(b.snInsurer()); err != nil {
		return nil, err
	}
	for _, p := range s.Payers {
		if err := emit(b.snPayer(p)); err != nil {
			return nil, err
		}
	}
	if err := emit(b.jd(insurerSlot, b.visitDays(""))); err != nil {
		return nil, err
	}
	for _, p := range s.Payers {
		if err := emit(b.jd(b.slots[p.ID], b.visitDays(p.ID))); err != nil {
			return nil, err
		}
	}
	for _, step := range []func() (Record, error){b.mf, b.ih, b.hj, b.js, b.sy, b.rj} {
		if err := emit(step()); err != nil {
			return nil, err
		}
	}
	svcs, err := b.visitServices()
	if err != nil {
		return nil, err
	}
	for _, sv := range svcs {
		if err := emit(b.ks(sv)); err != nil {
			return nil, err
		}
	}
	for _, sv := range b.bonusServices() {
		if err := emit(b.ks(sv)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Compose wraps per-claim blocks, already in claim-sequence order, with the
// file header and footer and checks the result's record order.
func Compose(header Record, blocks [][]Record, footer Record) ([]Record, error) {
	var q Sequencer
	if err := q.Append(header); err != nil {
		return nil, err
	}
	for _, blk := range blocks {
		for _, rec := range blk {
			if err := q.Append(rec); err != nil {
				return nil, err
			}
		}
	}
	if err := q.Append(footer); err != nil {
		return nil, err
	}
	return q.Records()
}

// EncodeFile encodes one or more claims into a single file's records. The
// station record and closing summary appear once; every other record repeats
// per claim with claim sequence 1, 2, 3...
func EncodeFile(claims []Claim, tbl *master.Table) ([]Record, error) {
	if len(claims) == 0 {
		return nil, fmt.Errorf("no claims to encode")
	}
	snaps := make([]*model.Snapshot, len(claims))
	for i, c := range claims {
		snaps[i] = c.Snapshot
	}
	if err := ValidateBatch(snaps); err != nil {
		return nil, err
	}

	header, err := Header(claims[0].Snapshot)
	if err != nil {
		return nil, err
	}
	blocks := make([][]Record, len(claims))
	for i, c := range claims {
		blk, err := EncodeClaim(i+1, c, tbl)
		if err != nil {
			return nil, fmt.Errorf("claim %d: %w", i+1, err)
		}
		blocks[i] = blk
	}
	footer, err := Footer(claims)
	if err != nil {
		return nil, err
	}
	return Compose(header, blocks, footer)
}

// ValidateBatch checks that every snapshot of a batch file belongs to the
// same station and service month, since HM is emitted only once.
func ValidateBatch(snaps []*model.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	first := snaps[0]
	for i, s := range snaps[1:] {
		if s.Facility.StationCode != first.Facility.StationCode ||
			s.Facility.PrefectureCode != first.Facility.PrefectureCode {
			return claimerr.Field("station_code", s.Facility.StationCode,
				"claim %d belongs to a different station than claim 1", i+2)
		}
		if s.Year != first.Year || s.Month != first.Month {
			return claimerr.Field("service_month", YearMonth(s.Year, s.Month),
				"claim %d has a different service month than claim 1", i+2)
		}
	}
	return nil
}
