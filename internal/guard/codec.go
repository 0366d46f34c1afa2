// internal/guard/codec.go
package guard

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Размеры записей в байтах.
const (
	LaunchStateSize   = 8 + 32 + 32 + 8 + 1 + 8 + 8 + 1 + 32 + 32 + 8
	FlaggedTraderSize = 8 + 32 + 8 + 8 + 8 + 8
)

var (
	launchStateDiscriminator   = accountDiscriminator("LaunchState")
	flaggedTraderDiscriminator = accountDiscriminator("FlaggedTrader")

	ErrBadDiscriminator = errors.New("record discriminator mismatch")
)

func accountDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("account:" + name))
	return sum[:8]
}

// MarshalBinary encodes the record in its fixed little-endian layout.
func (s *LaunchState) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, LaunchStateSize))
	enc := bin.NewBinEncoder(buf)

	steps := []func() error{
		func() error { return enc.WriteBytes(launchStateDiscriminator, false) },
		func() error { return enc.WriteBytes(s.Authority.Bytes(), false) },
		func() error { return enc.WriteBytes(s.Mint.Bytes(), false) },
		func() error { return enc.WriteUint64(s.LaunchSlot, binary.LittleEndian) },
		func() error { return enc.WriteBool(s.IsLaunched) },
		func() error { return enc.WriteUint64(s.CapturedValue, binary.LittleEndian) },
		func() error { return enc.WriteUint64(s.ReserveTokens, binary.LittleEndian) },
		func() error { return enc.WriteUint8(s.Bump) },
		func() error { return enc.WriteBytes(s.LastFlaggedTrader.Bytes(), false) },
		func() error { return enc.WriteBytes(s.Pool.Bytes(), false) },
		func() error { return enc.WriteUint64(s.CounterTradedTokens, binary.LittleEndian) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, fmt.Errorf("failed to encode launch state: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a record written by MarshalBinary.
func (s *LaunchState) UnmarshalBinary(data []byte) error {
	if len(data) != LaunchStateSize {
		return fmt.Errorf("launch state is %d bytes, want %d", len(data), LaunchStateSize)
	}
	if !bytes.Equal(data[:8], launchStateDiscriminator) {
		return ErrBadDiscriminator
	}

	dec := bin.NewBinDecoder(data[8:])
	var out LaunchState
	var err error
	if out.Authority, err = readKey(dec); err != nil {
		return err
	}
	if out.Mint, err = readKey(dec); err != nil {
		return err
	}
	if out.LaunchSlot, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	if out.IsLaunched, err = dec.ReadBool(); err != nil {
		return err
	}
	if out.CapturedValue, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	if out.ReserveTokens, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	if out.Bump, err = dec.ReadUint8(); err != nil {
		return err
	}
	if out.LastFlaggedTrader, err = readKey(dec); err != nil {
		return err
	}
	if out.Pool, err = readKey(dec); err != nil {
		return err
	}
	if out.CounterTradedTokens, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return err
	}
	*s = out
	return nil
}

// MarshalBinary encodes a flagged-trader entry.
func (f *FlaggedTrader) MarshalBinary() ([]byte, error) {
	buf := bytes.NewBuffer(make([]byte, 0, FlaggedTraderSize))
	enc := bin.NewBinEncoder(buf)

	if err := enc.WriteBytes(flaggedTraderDiscriminator, false); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(f.Trader.Bytes(), false); err != nil {
		return nil, err
	}
	for _, v := range []uint64{f.Detections, f.CapturedValue, f.FirstSlot, f.LastSlot} {
		if err := enc.WriteUint64(v, binary.LittleEndian); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a flagged-trader entry.
func (f *FlaggedTrader) UnmarshalBinary(data []byte) error {
	if len(data) != FlaggedTraderSize {
		return fmt.Errorf("flagged trader is %d bytes, want %d", len(data), FlaggedTraderSize)
	}
	if !bytes.Equal(data[:8], flaggedTraderDiscriminator) {
		return ErrBadDiscriminator
	}

	dec := bin.NewBinDecoder(data[8:])
	trader, err := readKey(dec)
	if err != nil {
		return err
	}
	out := FlaggedTrader{Trader: trader}
	for _, dst := range []*uint64{&out.Detections, &out.CapturedValue, &out.FirstSlot, &out.LastSlot} {
		if *dst, err = dec.ReadUint64(binary.LittleEndian); err != nil {
			return err
		}
	}
	*f = out
	return nil
}

func readKey(dec *bin.Decoder) (solana.PublicKey, error) {
	b, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return solana.PublicKeyFromBytes(b), nil
}
