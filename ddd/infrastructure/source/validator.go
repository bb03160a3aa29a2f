package source

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"path"
	"strings"
	"time"

	"sermon-publisher/ddd/domain/entity"
	"sermon-publisher/ddd/domain/gateway"
)

// Resolver 主机名解析，测试中可替换
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// nonPageExtensions 明显不是讲道网页的资源
var nonPageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".svg": true,
	".mp3": true, ".mp4": true, ".mov": true, ".avi": true, ".wav": true,
	".zip": true, ".gz": true, ".tar": true, ".rar": true, ".7z": true,
	".exe": true, ".dmg": true, ".apk": true, ".iso": true, ".bin": true,
	".css": true, ".js": true, ".json": true, ".xml": true,
}

// URLValidator 校验来源引用：http(s)、可解析、非内网地址、看起来是网页
type URLValidator struct {
	resolver Resolver
	timeout  time.Duration
}

func NewURLValidator(resolver Resolver, timeout time.Duration) *URLValidator {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &URLValidator{resolver: resolver, timeout: timeout}
}

var _ gateway.SourceValidator = (*URLValidator)(nil)

func (v *URLValidator) Validate(ctx context.Context, ref string) error {
	const op = "validate source"
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil || ref == "" {
		return entity.Errorf(entity.KindValidation, op, "not a valid url")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return entity.Errorf(entity.KindValidation, op, "unsupported scheme %q", u.Scheme)
	}
	host := u.Hostname()
	if host == "" {
		return entity.Errorf(entity.KindValidation, op, "missing host")
	}
	if ext := strings.ToLower(path.Ext(u.Path)); nonPageExtensions[ext] {
		return entity.Errorf(entity.KindValidation, op, "%s does not look like a web page", ext)
	}

	if ip := net.ParseIP(host); ip != nil {
		return checkIP(op, ip)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	addrs, err := v.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return entity.Errorf(entity.KindValidation, op, "host %s does not resolve", host)
	}
	if len(addrs) == 0 {
		return entity.Errorf(entity.KindValidation, op, "host %s has no addresses", host)
	}
	for _, a := range addrs {
		if err := checkIP(op, a.IP); err != nil {
			return err
		}
	}
	return nil
}

// sharedAddressSpace 运营商级 NAT 地址段 100.64.0.0/10
var sharedAddressSpace = &net.IPNet{IP: net.IPv4(100, 64, 0, 0), Mask: net.CIDRMask(10, 32)}

func checkIP(op string, ip net.IP) error {
	switch {
	case ip.IsLoopback():
		return entity.Errorf(entity.KindValidation, op, "loopback address %s", ip)
	case ip.IsPrivate(), sharedAddressSpace.Contains(ip):
		return entity.Errorf(entity.KindValidation, op, "private address %s", ip)
	case ip.IsLinkLocalUnicast(), ip.IsLinkLocalMulticast():
		return entity.Errorf(entity.KindValidation, op, "link-local address %s", ip)
	case ip.IsUnspecified(), ip.IsMulticast():
		return entity.Errorf(entity.KindValidation, op, "unroutable address %s", ip)
	}
	return nil
}

// Reason 提取不含操作前缀的拒绝原因
func Reason(err error) string {
	var pe *entity.PipelineError
	if errors.As(err, &pe) && pe.Err != nil {
		return pe.Err.Error()
	}
	return fmt.Sprint(err)
}
