package transport

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/kodiakio/realtime-go/errors"
	"github.com/kodiakio/realtime-go/transport/compress"
)

// NegotiationParams は、接続要求の URL クエリで事前ネゴシエーションするパラメーターです。
//
// 接続を開始する側が提案し、受け付ける側はその内容でコネクションのコーデックを生成します。
type NegotiationParams struct {
	Compress           compress.Type `json:"comp,omitempty"`
	CompressLevel      *int          `json:"clevel,string,omitempty"`
	CompressWindowBits *int          `json:"cwinbits,string,omitempty"`
}

// NegotiationParamsFor は、圧縮設定を提案するパラメーターを返します。
func NegotiationParamsFor(c compress.Config) NegotiationParams {
	if !c.Enable {
		return NegotiationParams{}
	}
	p := NegotiationParams{Compress: c.Type()}
	if c.Level != 0 {
		level := c.Level
		p.CompressLevel = &level
	}
	if c.WindowBits != 0 && c.Type() == compress.TypeContextTakeOver {
		bits := c.WindowBits
		p.CompressWindowBits = &bits
	}
	return p
}

func (p *NegotiationParams) Validate() error {
	switch p.Compress {
	case "":
		if p.CompressLevel != nil || p.CompressWindowBits != nil {
			return errors.New("compress parameters without compress type")
		}
	case compress.TypePerMessage, compress.TypeContextTakeOver:
		if p.CompressLevel != nil && (*p.CompressLevel < 0 || *p.CompressLevel > 9) {
			return errors.Errorf("unknown compress level %d", *p.CompressLevel)
		}
		if p.CompressWindowBits != nil && (*p.CompressWindowBits < 8 || *p.CompressWindowBits > 24) {
			return errors.Errorf("invalid compress window bits %d", *p.CompressWindowBits)
		}
	case compress.TypeZstd:
		if p.CompressLevel != nil && (*p.CompressLevel < 0 || *p.CompressLevel > 4) {
			return errors.Errorf("unknown compress level %d", *p.CompressLevel)
		}
		if p.CompressWindowBits != nil {
			return errors.New("window bits is not supported by zstd")
		}
	default:
		return errors.Errorf("unknown compress type %q", p.Compress)
	}
	return nil
}

// CompressConfig は、事前ネゴシエーションの情報をもとに設定された新たな compress.Config を返します。
func (p *NegotiationParams) CompressConfig(base compress.Config) compress.Config {
	if p.Compress == "" {
		base.Enable = false
		return base
	}
	base.Enable = true
	base.Algorithm = compress.AlgorithmDeflate
	base.Level = 0
	base.WindowBits = 0
	if p.CompressLevel != nil {
		base.Level = *p.CompressLevel
	}
	if p.CompressWindowBits != nil {
		base.WindowBits = *p.CompressWindowBits
	}

	switch p.Compress {
	case compress.TypePerMessage:
		base.DisableContextTakeover = true
	case compress.TypeContextTakeOver:
		base.DisableContextTakeover = false
	case compress.TypeZstd:
		base.Algorithm = compress.AlgorithmZstd
		base.DisableContextTakeover = true
	}

	return base
}

func (p *NegotiationParams) UnmarshalKeyValues(keyvals map[string]string) error {
	b, err := json.Marshal(keyvals)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, p)
}

func (p *NegotiationParams) MarshalKeyValues() (map[string]string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	keyvals := make(map[string]any)
	if err := json.Unmarshal(b, &keyvals); err != nil {
		return nil, err
	}
	res := make(map[string]string, len(keyvals))
	for k, v := range keyvals {
		res[k] = fmt.Sprintf("%v", v)
	}
	return res, nil
}

// MarshalURLValuesは、ネゴシエーションパラメータをurl.Valuesにエンコードします。
func (p *NegotiationParams) MarshalURLValues() (url.Values, error) {
	keyvals, err := p.MarshalKeyValues()
	if err != nil {
		return nil, err
	}

	res := url.Values{}
	for k, v := range keyvals {
		res[k] = []string{v}
	}
	return res, nil
}

// UnmarshalURLValuesは、ネゴシエーションパラメータをurl.Valuesからデコードします。
//
// ネゴシエーションに関係しないキーは無視します。
func (p *NegotiationParams) UnmarshalURLValues(values url.Values) error {
	keyvals := map[string]string{}
	for _, k := range []string{"comp", "clevel", "cwinbits"} {
		v, ok := values[k]
		if !ok {
			continue
		}
		if len(v) != 1 {
			return errors.Errorf("value's len must be one, got %d values in %q", len(v), k)
		}
		keyvals[k] = v[0]
	}

	return p.UnmarshalKeyValues(keyvals)
}

// AppendToURL は、パラメーターをクエリに追加した URL を返します。
func (p *NegotiationParams) AppendToURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Errorf("parse url %q: %w", rawURL, err)
	}
	vals, err := p.MarshalURLValues()
	if err != nil {
		return "", err
	}
	q := u.Query()
	for k, v := range vals {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
