package vm

import (
	"bytes"
	"fmt"

	"github.com/GriffinCanCode/AgentOS/kernel/internal/shared/abi"
)

// CopyIn copies n bytes from user address uaddr into a kernel buffer.
func CopyIn(as *AddressSpace, uaddr uint32, n int) ([]byte, error) {
	if uaddr == 0 {
		return nil, fmt.Errorf("vm: copyin from NULL: %w", abi.EFAULT)
	}
	return as.Load(uaddr, n)
}

// CopyOut copies b to user address uaddr.
func CopyOut(as *AddressSpace, uaddr uint32, b []byte) error {
	if uaddr == 0 {
		return fmt.Errorf("vm: copyout to NULL: %w", abi.EFAULT)
	}
	return as.Store(uaddr, b)
}

// CopyInWord reads one user word.
func CopyInWord(as *AddressSpace, uaddr uint32) (uint32, error) {
	b, err := CopyIn(as, uaddr, 4)
	if err != nil {
		return 0, err
	}
	return ByteOrder.Uint32(b), nil
}

// CopyOutWord writes one user word.
func CopyOutWord(as *AddressSpace, uaddr uint32, v uint32) error {
	var b [4]byte
	ByteOrder.PutUint32(b[:], v)
	return CopyOut(as, uaddr, b[:])
}

// CopyInStr copies a NUL-terminated string of at most maxlen bytes,
// terminator included. The returned length counts the terminator.
func CopyInStr(as *AddressSpace, uaddr uint32, maxlen int) (string, int, error) {
	if uaddr == 0 {
		return "", 0, fmt.Errorf("vm: copyinstr from NULL: %w", abi.EFAULT)
	}

	as.mu.Lock()
	defer as.mu.Unlock()
	as.assertLive()

	var buf []byte
	va := uaddr
	for len(buf) < maxlen {
		s := as.segment(va)
		if s == nil {
			return "", 0, fmt.Errorf("vm: copyinstr at %#x: %w", va, abi.EFAULT)
		}
		chunk := s.Data[va-s.Base:]
		if room := maxlen - len(buf); len(chunk) > room {
			chunk = chunk[:room]
		}
		if i := bytes.IndexByte(chunk, 0); i >= 0 {
			buf = append(buf, chunk[:i]...)
			return string(buf), len(buf) + 1, nil
		}
		buf = append(buf, chunk...)
		va += uint32(len(chunk))
	}
	return "", 0, fmt.Errorf("vm: copyinstr at %#x exceeds %d bytes: %w", uaddr, maxlen, abi.ENAMETOOLONG)
}
