//go:build windows

package process_windows

import (
	"fmt"
	"sync"

	"golang.org/x/sys/windows"
)

var debugPrivilegeOnce sync.Once
var debugPrivilegeErr error

// enableDebugPrivilege enables SeDebugPrivilege for the current process once.
func enableDebugPrivilege() error {
	debugPrivilegeOnce.Do(func() {
		var token windows.Token
		err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_ADJUST_PRIVILEGES|windows.TOKEN_QUERY, &token)
		if err != nil {
			debugPrivilegeErr = fmt.Errorf("OpenProcessToken: %w", err)
			return
		}
		defer token.Close()

		var luid windows.LUID
		seDebug, err := windows.UTF16PtrFromString("SeDebugPrivilege")
		if err != nil {
			debugPrivilegeErr = err
			return
		}
		if err := windows.LookupPrivilegeValue(nil, seDebug, &luid); err != nil {
			debugPrivilegeErr = fmt.Errorf("LookupPrivilegeValue: %w", err)
			return
		}

		tp := windows.Tokenprivileges{PrivilegeCount: 1}
		tp.Privileges[0] = windows.LUIDAndAttributes{
			Luid:       luid,
			Attributes: windows.SE_PRIVILEGE_ENABLED,
		}
		if err := windows.AdjustTokenPrivileges(token, false, &tp, 0, nil, nil); err != nil {
			debugPrivilegeErr = fmt.Errorf("AdjustTokenPrivileges: %w", err)
		}
	})
	return debugPrivilegeErr
}
