package service

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/invoiceflow/internal/authorization"
	invoicedomain "github.com/smallbiznis/invoiceflow/internal/invoice/domain"
	"github.com/smallbiznis/invoiceflow/internal/invoice/render"
	"go.uber.org/zap"
)

func (s *Service) RenderHTML(ctx context.Context, actor authorization.Actor, id snowflake.ID) (string, error) {
	input, err := s.renderInput(ctx, actor, id)
	if err != nil {
		return "", err
	}

	html, err := s.renderer.RenderHTML(input)
	if err != nil {
		s.log.Error("render invoice html failed", zap.String("invoice_id", id.String()), zap.Error(err))
		return "", fmt.Errorf("render invoice %s: %w", id, err)
	}
	return html, nil
}

func (s *Service) RenderPDF(ctx context.Context, actor authorization.Actor, id snowflake.ID) ([]byte, error) {
	input, err := s.renderInput(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	pdf, err := s.renderer.RenderPDF(input)
	if err != nil {
		s.log.Error("render invoice pdf failed", zap.String("invoice_id", id.String()), zap.Error(err))
		return nil, fmt.Errorf("render invoice %s: %w", id, err)
	}
	return pdf, nil
}

// renderInput loads the read-only aggregate behind the same read check as Get.
func (s *Service) renderInput(ctx context.Context, actor authorization.Actor, id snowflake.ID) (render.RenderInput, error) {
	invoice, err := s.load(ctx, s.db, actor, authorization.ActionRead, id)
	if err != nil {
		return render.RenderInput{}, err
	}
	detail, err := s.detail(ctx, invoice)
	if err != nil {
		return render.RenderInput{}, err
	}
	return buildRenderInput(detail), nil
}

func buildRenderInput(detail *invoicedomain.InvoiceDetail) render.RenderInput {
	return render.RenderInput{
		Invoice: detail.Invoice,
		Items:   detail.Items,
		Company: detail.Company,
	}
}
